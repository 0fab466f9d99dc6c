// Package middleware provides HTTP middleware for the blend browser API.
//
// It includes:
//   - Single-line access logging with slow-request flagging
//   - Prometheus request metrics with path normalization
//   - Response compression (gzip) that leaves PNG thumbnails alone
//   - Configurable filtering for static files and health probes
package middleware
