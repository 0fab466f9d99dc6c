package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blend-browser/internal/database"
	"blend-browser/internal/filesystem"
	"blend-browser/internal/handlers"
	"blend-browser/internal/logging"
	"blend-browser/internal/memory"
	"blend-browser/internal/metrics"
	"blend-browser/internal/middleware"
	"blend-browser/internal/scanner"
	"blend-browser/internal/startup"
	"blend-browser/internal/thumbcache"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// statsAdapter feeds library statistics from the database to the metrics
// collector.
type statsAdapter struct {
	db *database.Database
}

func (a statsAdapter) GetStats() metrics.Stats {
	s := a.db.GetStats()
	return metrics.Stats{
		TotalFiles:      s.TotalFiles,
		FilesWithThumbs: s.FilesWithThumbnail,
		CompressedFiles: s.CompressedFiles,
		TotalTags:       s.TotalTags,
	}
}

func main() {
	startTime := time.Now()

	// Apply GOMEMLIMIT before anything allocates in earnest.
	memResult := memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	startup.LogMemoryConfig(startup.MemoryConfig{
		Configured:     memResult.Configured,
		Source:         memResult.Source,
		ContainerLimit: memResult.ContainerLimit,
		GoMemLimit:     memResult.GoMemLimit,
		Ratio:          memResult.Ratio,
	})

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	buildInfo := startup.GetBuildInfo()
	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(buildInfo.Version, buildInfo.Commit, buildInfo.GoVersion).Set(1)

	// Filesystem retries report per-volume metrics once an observer is set.
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"library":  config.LibraryDir,
		"cache":    config.CacheDir,
		"database": config.DataDir,
	}))

	// Memory monitor provides backpressure to the scanner during large
	// library walks.
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	// Initialize scanner
	startup.LogScannerInit(config.ScanInterval)
	sc := scanner.New(db, config.LibraryDir, config.ScanInterval)
	sc.SetPollInterval(config.PollInterval)
	sc.SetMemoryMonitor(monitor)

	// Start scanner in background (non-blocking)
	go func() {
		if err := sc.Start(); err != nil {
			logging.Error("Failed to start scanner: %v", err)
		}
	}()
	startup.LogScannerStarted()

	// Initialize thumbnail store
	var store *thumbcache.DiskStore
	if config.ThumbnailsEnabled {
		store, err = thumbcache.NewDiskStore(config.ThumbnailDir)
		if err != nil {
			logging.Warn("Thumbnail store unavailable, disabling thumbnails: %v", err)
			config.ThumbnailsEnabled = false
		}
	}
	startup.LogThumbnailInit(config.ThumbnailsEnabled, config.ThumbnailCapacity, config.ThumbnailWorkers)

	// Initialize handlers
	h := handlers.New(db, sc, store, config)

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	// Apply metrics middleware
	var handler http.Handler = router
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)

	// Apply compression middleware
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	// Periodic gauge collection: library stats, database size, cache size
	collector := metrics.NewCollector(statsAdapter{db: db}, config.DatabasePath, config.ThumbnailDir, 30*time.Second)
	if config.MetricsEnabled {
		collector.Start()
	}

	// Metrics are served on their own port so the scrape endpoint never
	// competes with library traffic.
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:         ":" + config.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, sc, monitor, collector)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/files", h.ListFiles).Methods("GET")
	api.HandleFunc("/file/{path:.*}", h.GetFile).Methods("GET")
	api.HandleFunc("/thumbnail/{path:.*}", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/search", h.Search).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/rescan", h.TriggerRescan).Methods("POST")

	// Tags
	api.HandleFunc("/tags", h.GetAllTags).Methods("GET")
	api.HandleFunc("/tags/file", h.GetFileTags).Methods("GET")
	api.HandleFunc("/tags/file", h.AddTagToFile).Methods("POST")
	api.HandleFunc("/tags/file", h.RemoveTagFromFile).Methods("DELETE")
	api.HandleFunc("/tags/file/set", h.SetFileTags).Methods("POST")
	api.HandleFunc("/tags/batch", h.GetBatchFileTags).Methods("POST")
	api.HandleFunc("/tags/{tag}", h.GetFilesByTag).Methods("GET")
	api.HandleFunc("/tags/{tag}", h.DeleteTag).Methods("DELETE")
	api.HandleFunc("/tags/{tag}", h.RenameTag).Methods("PUT")

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, sc *scanner.Scanner, monitor *memory.Monitor, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping scanner")
	sc.Stop()
	startup.LogShutdownStepComplete("Scanner stopped")

	startup.LogShutdownStep("Stopping metrics collection")
	collector.Stop()
	monitor.Stop()
	startup.LogShutdownStepComplete("Metrics collection stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
