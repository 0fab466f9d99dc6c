package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Per-core pool factors for the two workloads in the blend pipeline.
// Header parsing reads a fixed prefix, decodes at most one RGBA block,
// and then waits on disk, so it benefits from oversubscription; walking
// only stats and enumerates directory entries.
const (
	parsePerCore = 2
	walkPerCore  = 1
)

// ForParsing returns the pool size for ParseQuick workloads, limit-capped
// (0 means uncapped). GOMAXPROCS already reflects container CPU limits,
// so the count respects cgroup quotas. The THUMBNAIL_WORKERS environment
// variable overrides the computed count; the cap still applies.
func ForParsing(limit int) int {
	if n, ok := override(); ok {
		return capped(n, limit)
	}
	return capped(runtime.GOMAXPROCS(0)*parsePerCore, limit)
}

// ForWalking returns the pool size for directory enumeration, limit-capped
// (0 means uncapped).
func ForWalking(limit int) int {
	return capped(runtime.GOMAXPROCS(0)*walkPerCore, limit)
}

// override reads THUMBNAIL_WORKERS. Zero, negative and non-numeric values
// are ignored.
func override() (int, bool) {
	v := os.Getenv("THUMBNAIL_WORKERS")
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func capped(n, limit int) int {
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}
