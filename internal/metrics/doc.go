// Package metrics provides Prometheus instrumentation for the blend browser.
//
// All metrics are prefixed with "blend_browser_" and registered with the
// default registry via promauto. Mount promhttp.Handler() on the metrics
// endpoint to expose them:
//
//	import "github.com/prometheus/client_golang/prometheus/promhttp"
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// # Metric Categories
//
//   - HTTP: request counts, durations, in-flight gauge
//   - Parser: quick-parse counts by outcome and durations
//   - Thumbnail cache: in-memory hits/misses/evictions, cooldown
//     suppressions, load queue depth, worker load results
//   - Disk cache: hits/misses/corruptions, size and record count
//   - Scanner: run counts, durations, files processed, errors
//   - Database: query counts/durations, SQLite file sizes
//   - Library: file/tag/thumbnail totals exported by the Collector
//   - Filesystem: operation durations/errors and retry activity
//
// # Recording Metrics
//
// Import this package and use the exported metric variables:
//
//	metrics.ThumbnailCacheHits.Inc()
//	metrics.ParserParseDuration.Observe(0.012)
//	metrics.DBQueryTotal.WithLabelValues("upsert_file", "success").Inc()
//
// # Collector
//
// The [Collector] type periodically gathers statistics from a
// [StatsProvider] (the database) and measures the database and disk-cache
// files, updating the corresponding gauges:
//
//	collector := metrics.NewCollector(db, dbPath, cacheDir, time.Minute)
//	collector.Start()
//	defer collector.Stop()
package metrics
