// Package scanner keeps the library database in sync with the blend
// files on disk.
//
// A scan walks the configured library directory, parses every .blend
// file's header for its version, compression state and thumbnail
// presence, and upserts the results into the database in batches. Rows
// for files that have vanished are pruned at the end of each scan.
//
// Scans run on a fixed interval and after a lightweight change
// detection poll notices the library changed; they can also be
// triggered manually. Directory walking and header parsing fan out
// over a small worker pool sized for the container's CPU limit.
package scanner
