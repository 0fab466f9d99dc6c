// Package startup owns configuration loading and lifecycle logging.
//
// [LoadConfig] reads the environment (and an optional CONFIG_FILE)
// through viper:
//
//   - LIBRARY_DIR, CACHE_DIR, DATA_DIR: the three root directories
//     (defaults /library, /cache, /data). Data must be writable; cache
//     is optional and gates thumbnails; library is usually a mount.
//   - PORT, METRICS_PORT, METRICS_ENABLED: HTTP surfaces.
//   - SCAN_INTERVAL, POLL_INTERVAL: full re-scan and change-poll
//     cadence, as Go durations.
//   - THUMBNAIL_CACHE_CAPACITY, THUMBNAIL_WORKERS, THUMBNAIL_COOLDOWN:
//     thumbnail pipeline tuning. Capacity and workers default to values
//     derived from the memory limit and CPU count.
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: heap budget, consumed by
//     the memory package.
//   - LOG_LEVEL, LOG_STATIC_FILES, LOG_HEALTH_CHECKS: logging.
//
// Build-time variables are injected via ldflags and exposed through
// [GetBuildInfo].
//
// The Log* functions keep the startup and shutdown output uniform; they
// format, the caller sequences.
package startup
