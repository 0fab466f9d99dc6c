package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"blend-browser/internal/metrics"
)

// MetricsConfig controls which requests are recorded.
type MetricsConfig struct {
	// SkipPaths are prefixes left out of the request metrics, typically
	// the probe endpoints and the metrics scrape itself.
	SkipPaths []string
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{w, http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics returns a middleware recording request count, duration, and
// in-flight gauge per method and normalized path.
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	skip := func(path string) bool {
		for _, prefix := range config.SkipPaths {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			wrapped := newMetricsResponseWriter(w)
			start := time.Now()
			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path)
			metrics.HTTPRequestsTotal.WithLabelValues(
				r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(
				r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// wildcardPrefixes are route prefixes whose remainder is a library path
// and would explode metric cardinality if recorded verbatim.
var wildcardPrefixes = []string{
	"/api/thumbnail/",
	"/api/file/",
}

// normalizePath collapses per-file paths into one label per route.
func normalizePath(path string) string {
	for _, prefix := range wildcardPrefixes {
		if strings.HasPrefix(path, prefix) {
			return prefix + "{path}"
		}
	}

	// Unknown deep paths get truncated rather than labelled verbatim.
	parts := strings.Split(path, "/")
	if len(parts) > 5 {
		return strings.Join(parts[:5], "/") + "/{path}"
	}
	return path
}
