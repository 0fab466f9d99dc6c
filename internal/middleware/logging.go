package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"blend-browser/internal/logging"
)

// LoggingConfig controls which requests reach the access log.
type LoggingConfig struct {
	// LogStaticFiles enables logging for the embedded UI assets, which
	// are noisy on every page load.
	LogStaticFiles bool
	// LogHealthChecks enables logging for probe endpoints, which fire
	// every few seconds under an orchestrator.
	LogHealthChecks bool
	// SlowThreshold marks requests above this duration with a warning.
	SlowThreshold time.Duration
}

// DefaultLoggingConfig returns the default logging configuration.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogStaticFiles:  false,
		LogHealthChecks: true,
		SlowThreshold:   2 * time.Second,
	}
}

// probePaths are hit by liveness and readiness checks.
var probePaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int64
}

func (rw *loggingResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// Logger returns a middleware that writes one access-log line per request.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipLogging(config, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			wrapped := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(wrapped, r)

			elapsed := time.Since(start)
			line := accessLine(r, wrapped, elapsed)
			switch {
			case wrapped.statusCode >= 500:
				logging.Error("%s", line)
			case config.SlowThreshold > 0 && elapsed >= config.SlowThreshold:
				logging.Warn("%s (slow)", line)
			default:
				logging.Info("%s", line)
			}
		})
	}
}

func skipLogging(config LoggingConfig, path string) bool {
	if !config.LogHealthChecks && probePaths[path] {
		return true
	}
	if !config.LogStaticFiles && isStaticAsset(path) {
		return true
	}
	return false
}

func isStaticAsset(path string) bool {
	if strings.HasPrefix(path, "/api/") || probePaths[path] {
		return false
	}
	for _, suffix := range []string{".css", ".js", ".ico", ".svg", ".woff2", ".map"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func accessLine(r *http.Request, rw *loggingResponseWriter, elapsed time.Duration) string {
	return fmt.Sprintf("%s %s %s %d %dB %s",
		clientIP(r),
		r.Method,
		sanitize(r.URL.RequestURI()),
		rw.statusCode,
		rw.bytes,
		elapsed.Round(time.Millisecond))
}

// clientIP prefers proxy headers so logs show the real caller behind an
// ingress, falling back to the socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop is the original client.
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return sanitize(strings.TrimSpace(fwd))
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return sanitize(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// sanitize strips control characters so header values cannot forge extra
// log lines.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, s)
}

