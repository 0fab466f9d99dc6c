// Package workers sizes the worker pools used by the scan and thumbnail
// pipelines.
//
// Two profiles exist, matching the two workload shapes:
//
//   - ForParsing: blend header parsing. Each item is a short read of the
//     file prefix plus, at most, one RGBA thumbnail block, followed by
//     disk wait. The pool oversubscribes the cores (2x) and honors the
//     THUMBNAIL_WORKERS override for operators who know their storage.
//
//   - ForWalking: directory enumeration during a library scan, one worker
//     per core.
//
// Counts derive from runtime.GOMAXPROCS, which tracks container CPU
// quotas, so pools stay proportional inside constrained pods. Both
// profiles accept a hard cap; callers walking network mounts should cap
// low (the scanner uses 8) because extra in-flight stats on NFS only add
// latency.
package workers
