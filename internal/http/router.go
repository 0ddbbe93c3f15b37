package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router. An empty
// allowedOrigins list allows every origin.
func SetupRouter(handler *Handler, allowedOrigins []string) *gin.Engine {
	router := gin.Default()

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	// API v1 routes.
	v1 := router.Group("/v1")

	analyses := v1.Group("/analyses")
	analyses.POST("", handler.PostAnalysis)
	analyses.GET("", handler.ListAnalyses)
	analyses.GET("/:id", handler.GetAnalysis)

	v1.POST("/predictions", handler.PostPredictions)
	v1.POST("/filters/:name", handler.PostFilter)

	// Constituents.
	v1.GET("/constituents", handler.GetConstituentsList)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	return router
}
