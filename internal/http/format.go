package http

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vmihailenco/msgpack/v5"

	"go.ngs.io/tides-analysis/internal/log"
)

const msgpackContentType = "application/x-msgpack"

// respond writes data as JSON, or as MessagePack when format=msgpack is
// given. MessagePack field names follow the json tags.
func respond(c *gin.Context, status int, data any) {
	if c.Query("format") != "msgpack" {
		c.JSON(status, data)
		return
	}
	c.Header("Content-Type", msgpackContentType)
	c.Status(status)
	encoder := msgpack.NewEncoder(c.Writer)
	encoder.SetCustomStructTag("json")
	if err := encoder.Encode(data); err != nil {
		log.Errorf("failed to encode msgpack response: %v", err)
	}
}

// bind decodes the request body into dst, as MessagePack when the request
// says so and as JSON otherwise.
func bind(c *gin.Context, dst any) error {
	if strings.HasPrefix(c.ContentType(), msgpackContentType) {
		decoder := msgpack.NewDecoder(c.Request.Body)
		decoder.SetCustomStructTag("json")
		return decoder.Decode(dst)
	}
	return c.ShouldBindJSON(dst)
}

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}
