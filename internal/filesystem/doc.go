// Package filesystem wraps stat/open/read with bounded retries for network
// volumes where NFS can return transient stale-handle errors, and resolves
// paths to volume labels ("library", "cache", "database") for metrics.
//
// Metric recording is decoupled through the Observer interface so this
// package never imports the metrics package; call SetObserver and
// SetDefaultVolumeResolver once at startup.
package filesystem
