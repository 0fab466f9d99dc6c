package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blend_browser_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blend_browser_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Parser metrics
var (
	ParserParsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blend_browser_parser_parses_total",
			Help: "Total number of blend file parses by outcome",
		},
		[]string{"outcome"}, // "thumbnail", "no_thumbnail", "compressed", "error"
	)

	ParserParseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blend_browser_parser_parse_duration_seconds",
			Help:    "Duration of blend file quick parses in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

// Thumbnail cache metrics
var (
	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blend_browser_thumbnail_cache_hits_total",
			Help: "Total number of in-memory thumbnail cache hits",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blend_browser_thumbnail_cache_misses_total",
			Help: "Total number of in-memory thumbnail cache misses",
		},
	)

	ThumbnailCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blend_browser_thumbnail_cache_evictions_total",
			Help: "Total number of thumbnail cache entries evicted",
		},
	)

	ThumbnailCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_thumbnail_cache_entries",
			Help: "Current number of entries in the thumbnail cache",
		},
	)

	ThumbnailCooldownSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blend_browser_thumbnail_cooldown_suppressed_total",
			Help: "Total number of thumbnail requests suppressed by the post-eviction cooldown",
		},
	)

	ThumbnailLoadQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_thumbnail_load_queue_depth",
			Help: "Number of thumbnail load requests waiting for a worker",
		},
	)

	ThumbnailLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blend_browser_thumbnail_loads_total",
			Help: "Total number of thumbnail loads completed by workers",
		},
		[]string{"result"}, // "thumbnail", "negative"
	)

	DiskCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blend_browser_disk_cache_hits_total",
			Help: "Total number of disk thumbnail cache hits",
		},
	)

	DiskCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blend_browser_disk_cache_misses_total",
			Help: "Total number of disk thumbnail cache misses",
		},
	)

	DiskCacheCorruptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blend_browser_disk_cache_corruptions_total",
			Help: "Total number of disk cache records rejected as corrupt",
		},
	)

	DiskCacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_disk_cache_size_bytes",
			Help: "Total size of the on-disk thumbnail cache in bytes",
		},
	)

	DiskCacheFileCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_disk_cache_files",
			Help: "Number of records in the on-disk thumbnail cache",
		},
	)
)

// Scanner metrics
var (
	ScannerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blend_browser_scanner_runs_total",
			Help: "Total number of library scans",
		},
	)

	ScannerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_scanner_last_run_timestamp",
			Help: "Timestamp of the last library scan",
		},
	)

	ScannerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_scanner_last_run_duration_seconds",
			Help: "Duration of the last library scan in seconds",
		},
	)

	ScannerFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blend_browser_scanner_files_processed_total",
			Help: "Total number of blend files processed by the scanner",
		},
	)

	ScannerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blend_browser_scanner_errors_total",
			Help: "Total number of scanner errors",
		},
	)

	ScannerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_scanner_running",
			Help: "Whether a library scan is in progress (1 = running, 0 = idle)",
		},
	)

	ScannerParallelWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_scanner_parallel_workers",
			Help: "Number of parallel workers used by the scanner",
		},
	)

	ScannerPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blend_browser_scanner_poll_duration_seconds",
			Help:    "Duration of change detection polls in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		},
	)

	ScannerPollChecksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blend_browser_scanner_poll_checks_total",
			Help: "Total number of change detection polls",
		},
	)

	ScannerPollChangesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blend_browser_scanner_poll_changes_detected_total",
			Help: "Total number of polls that detected library changes",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blend_browser_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blend_browser_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blend_browser_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blend_browser_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blend_browser_db_rows_affected",
			Help:    "Rows affected by write operations",
			Buckets: []float64{1, 10, 100, 1000, 10000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Library metrics
var (
	LibraryFilesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_library_files",
			Help: "Number of blend files known to the library",
		},
	)

	LibraryTagsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_library_tags",
			Help: "Number of distinct tags in the library",
		},
	)

	LibraryFilesWithThumbnails = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_library_files_with_thumbnails",
			Help: "Number of blend files with an embedded thumbnail",
		},
	)

	LibraryCompressedFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_library_compressed_files",
			Help: "Number of gzip-compressed blend files in the library",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blend_browser_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blend_browser_filesystem_operation_errors_total",
			Help: "Total number of filesystem operation errors",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blend_browser_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blend_browser_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_go_memlimit_bytes",
			Help: "Configured GOMEMLIMIT in bytes (0 = unset)",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the memory limit (0.0-1.0)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blend_browser_memory_paused",
			Help: "Whether background processing is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blend_browser_memory_forced_gc_total",
			Help: "Total number of garbage collections forced by memory pressure",
		},
	)
)

// AppInfo exposes build information as constant labels.
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "blend_browser_info",
		Help: "Build information for the blend browser",
	},
	[]string{"version", "commit", "go_version"},
)
