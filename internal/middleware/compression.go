package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"
)

// CompressionConfig controls the gzip middleware.
type CompressionConfig struct {
	// MinSize is the smallest body worth compressing; gzip framing
	// overhead dominates below it.
	MinSize int
	// Level is the gzip compression level.
	Level int
	// Types lists compressible content-type prefixes. PNG thumbnails are
	// already deflate-compressed inside the format and are deliberately
	// not listed.
	Types []string
}

// DefaultCompressionConfig returns the default compression configuration.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.DefaultCompression,
		Types: []string{
			"application/json",
			"application/javascript",
			"text/html",
			"text/css",
			"text/plain",
			"image/svg+xml",
		},
	}
}

// Compression returns a middleware that gzips responses for clients that
// accept it. The encoding decision is deferred until enough of the body
// has been seen to know it clears MinSize, so small JSON replies go out
// uncompressed.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			cw := &compressWriter{
				ResponseWriter: w,
				config:         config,
				status:         http.StatusOK,
			}
			defer cw.close()
			next.ServeHTTP(cw, r)
		})
	}
}

// compressWriter buffers the response until it can choose between gzip
// and identity encoding. Headers are held back with the body: once the
// choice is made, Content-Encoding and Content-Length are consistent
// with what actually goes on the wire.
type compressWriter struct {
	http.ResponseWriter
	config CompressionConfig

	status  int
	decided bool
	gz      *gzip.Writer
	buf     []byte
}

func (cw *compressWriter) WriteHeader(code int) {
	// Deferred until the encoding decision; see commit.
	cw.status = code
}

func (cw *compressWriter) Write(b []byte) (int, error) {
	if cw.decided {
		if cw.gz != nil {
			return cw.gz.Write(b)
		}
		return cw.ResponseWriter.Write(b)
	}

	cw.buf = append(cw.buf, b...)

	if !cw.compressible() {
		if err := cw.commit(false); err != nil {
			return 0, err
		}
		return len(b), nil
	}
	if len(cw.buf) >= cw.config.MinSize {
		if err := cw.commit(true); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// compressible reports whether the response content type is worth
// gzipping. Falls back to sniffing when the handler set no type.
func (cw *compressWriter) compressible() bool {
	contentType := cw.Header().Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(cw.buf)
	}
	for _, t := range cw.config.Types {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

// commit picks the encoding, releases the held-back headers, and drains
// the buffer.
func (cw *compressWriter) commit(compress bool) error {
	cw.decided = true
	if compress {
		cw.Header().Del("Content-Length")
		cw.Header().Set("Content-Encoding", "gzip")
		cw.Header().Add("Vary", "Accept-Encoding")
		cw.ResponseWriter.WriteHeader(cw.status)

		gz, err := gzip.NewWriterLevel(cw.ResponseWriter, cw.config.Level)
		if err != nil {
			gz = gzip.NewWriter(cw.ResponseWriter)
		}
		cw.gz = gz
		_, err = gz.Write(cw.buf)
		cw.buf = nil
		return err
	}

	cw.ResponseWriter.WriteHeader(cw.status)
	_, err := cw.ResponseWriter.Write(cw.buf)
	cw.buf = nil
	return err
}

// close flushes whatever is pending. A body that never reached MinSize
// goes out as identity; an empty body still gets its status line.
func (cw *compressWriter) close() {
	if !cw.decided {
		cw.commit(false) //nolint:errcheck // response is already gone
		return
	}
	if cw.gz != nil {
		cw.gz.Close() //nolint:errcheck
	}
}
