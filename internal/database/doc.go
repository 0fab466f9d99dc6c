// Package database provides SQLite database operations for the blend
// browser.
//
// It handles storage and retrieval of:
//   - Blend file metadata (path, size, Blender version, compression,
//     thumbnail presence)
//   - Tags and file-tag assignments
//   - Full-text search indexing over names and paths
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization.
package database
