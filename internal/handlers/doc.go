// Package handlers provides HTTP request handlers for the blend browser API.
//
// It includes handlers for:
//   - Library listing and per-file metadata
//   - Thumbnail serving backed by the disk thumbnail cache
//   - Full-text search
//   - Tags management
//   - Health checks, stats and rescan triggering
package handlers
