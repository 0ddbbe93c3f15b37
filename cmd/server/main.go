// Package main provides the tides analysis HTTP server.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.ngs.io/tides-analysis/internal/adapter/store"
	"go.ngs.io/tides-analysis/internal/adapter/store/csv"
	"go.ngs.io/tides-analysis/internal/adapter/store/sqlite"
	"go.ngs.io/tides-analysis/internal/config"
	"go.ngs.io/tides-analysis/internal/filter"
	"go.ngs.io/tides-analysis/internal/gapfill"
	httpHandler "go.ngs.io/tides-analysis/internal/http"
	"go.ngs.io/tides-analysis/internal/log"
	"go.ngs.io/tides-analysis/internal/usecase"
)

const version = "0.2.0"

func main() {
	// Parse command-line flags.
	configPath := flag.String("config", "", "Path to a YAML, TOML or JSON config file")
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("tides-analysis version %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if err := log.Init(cfg.Logging.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Infow("starting tides analysis server",
		"version", version,
		"port", cfg.Server.Port,
		"data_dir", cfg.Storage.DataDir,
		"sqlite", cfg.Storage.SQLitePath)

	// Initialize stores.
	var stations store.ConstituentLoader = csv.NewConstituentStore(cfg.Storage.DataDir)

	var archive store.AnalysisStore
	if cfg.Storage.SQLitePath != "" {
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open analysis archive: %v", err)
		}
		defer db.Close()
		archive = db
		log.Infof("analysis archive at %s", cfg.Storage.SQLitePath)
	} else {
		log.Infof("analysis archive disabled (no storage.sqlite_path configured)")
	}

	// Initialize use cases.
	policy, _ := gapfill.ParsePolicy(cfg.Analysis.MissingData)
	analysisUC := usecase.NewAnalysisUseCase(archive, nil, usecase.AnalysisOptions{
		Rayleigh:      cfg.Analysis.Rayleigh,
		Trend:         cfg.Analysis.Trend,
		MissingData:   policy,
		Iavg:          cfg.Analysis.Iavg,
		RemoveExtreme: cfg.Analysis.RemoveExtreme,
		Detrend:       cfg.Analysis.Detrend,
		Infer:         cfg.Analysis.Infer,
		MaxIterations: cfg.Analysis.MaxIterations,
		Tolerance:     cfg.Analysis.Tolerance,
	})
	predictionUC := usecase.NewPredictionUseCase(stations, analysisUC, nil)
	filterUC := usecase.NewFilterUseCase(filter.Options{
		Padding:         filter.Padding(cfg.Filter.Padding),
		PassPeriodHours: cfg.Filter.PassPeriodHours,
		StopPeriodHours: cfg.Filter.StopPeriodHours,
		ProcessVariance: cfg.Filter.ProcessVariance,
		Rayleigh:        cfg.Analysis.Rayleigh,
	}, nil)

	// Setup router.
	handler := httpHandler.NewHandler(analysisUC, predictionUC, filterUC, cfg.Server.MaxSamples)
	router := httpHandler.SetupRouter(handler, cfg.Server.CORSAllowedOrigins)

	// Start server.
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Infof("server listening on %s", addr)
	log.Infof("health check: http://localhost:%s/health", cfg.Server.Port)

	if err := router.Run(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Tides Analysis Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  tides-server [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -config PATH   Config file (optional; environment variables override it)")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  PORT, TIDES_SERVER_PORT                Server port (default: 8080)")
	fmt.Println("  DATA_DIR, TIDES_STORAGE_DATA_DIR       Station constituent CSV directory (default: ./data)")
	fmt.Println("  CORS_ALLOWED_ORIGINS                   Comma-separated list of allowed origins (default: all origins)")
	fmt.Println("  TIDES_STORAGE_SQLITE_PATH              SQLite analysis archive (default: disabled)")
	fmt.Println("  TIDES_ANALYSIS_RAYLEIGH                Rayleigh factor (default: 1.0)")
	fmt.Println("  TIDES_ANALYSIS_MISSING_DATA            fail, ignore or fill (default: fail)")
	fmt.Println("  TIDES_FILTER_PADDING                   Filter padding (default: reflect)")
	fmt.Println("  TIDES_LOGGING_DEBUG                    Development logging (default: false)")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET  /health                   Health check")
	fmt.Println("  GET  /v1/constituents          List tidal constituents")
	fmt.Println("  POST /v1/analyses              Run a harmonic analysis")
	fmt.Println("  GET  /v1/analyses              List archived analyses")
	fmt.Println("  GET  /v1/analyses/:id          Fetch an archived analysis")
	fmt.Println("  POST /v1/predictions           Predict tides from constants or an analysis")
	fmt.Println("  POST /v1/filters/:name         Apply a filter (doodson, usgs, boxcar, transform, kalman, demodulation)")
	fmt.Println()
	fmt.Println("  Append ?format=msgpack to any endpoint for MessagePack responses.")
	fmt.Println()
}
