package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"blend-browser/internal/logging"
	"blend-browser/internal/metrics"
)

// DefaultMemoryRatio is the fraction of a container limit handed to the
// Go runtime as GOMEMLIMIT, leaving headroom for non-heap memory such as
// mmap'd SQLite pages and goroutine stacks.
const DefaultMemoryRatio = 0.85

// ConfigResult describes how the memory limit was resolved, for startup
// logging.
type ConfigResult struct {
	Configured     bool
	Source         string // "GOMEMLIMIT", "MEMORY_LIMIT", or "none"
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv derives GOMEMLIMIT from the environment. An explicit
// GOMEMLIMIT wins; otherwise MEMORY_LIMIT (the container's byte limit,
// typically injected from the pod spec) is scaled by MEMORY_RATIO and
// applied via debug.SetMemoryLimit. With neither set the runtime keeps
// its default of no limit.
func ConfigureFromEnv() ConfigResult {
	if raw := os.Getenv("GOMEMLIMIT"); raw != "" {
		// The runtime already parsed it at startup; read the value back
		// rather than reimplementing the size-suffix syntax.
		limit := EffectiveLimit()
		metrics.GoMemLimit.Set(float64(limit))
		return ConfigResult{
			Configured: true,
			Source:     "GOMEMLIMIT",
			GoMemLimit: limit,
		}
	}

	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		return ConfigResult{Source: "none"}
	}

	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Invalid MEMORY_LIMIT %q, ignoring", raw)
		return ConfigResult{Source: "none"}
	}

	ratio := DefaultMemoryRatio
	if rawRatio := os.Getenv("MEMORY_RATIO"); rawRatio != "" {
		parsed, err := strconv.ParseFloat(rawRatio, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			logging.Warn("Invalid MEMORY_RATIO %q, using default %.2f", rawRatio, DefaultMemoryRatio)
		} else {
			ratio = parsed
		}
	}

	goLimit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(goLimit)
	metrics.GoMemLimit.Set(float64(goLimit))

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     goLimit,
		Ratio:          ratio,
	}
}

// EffectiveLimit returns the runtime's current memory limit in bytes, or
// zero when none is set. debug.SetMemoryLimit(-1) reads the limit without
// changing it and reports MaxInt64 for "unlimited".
func EffectiveLimit() int64 {
	limit := debug.SetMemoryLimit(-1)
	if limit == math.MaxInt64 {
		return 0
	}
	return limit
}

// Capacity bounds for the derived thumbnail cache size.
const (
	minCacheCapacity      = 100
	maxCacheCapacity      = 4096
	fallbackCacheCapacity = 500

	// thumbnailSlotBytes is the budget per cached entry: a 128x128 RGBA
	// texture is 64 KiB, and most .blend previews are exactly that.
	thumbnailSlotBytes = 128 * 128 * 4
)

// DefaultCacheCapacity sizes the thumbnail cache from the memory limit:
// a tenth of the limit divided into per-thumbnail slots, clamped so the
// cache is neither useless on tiny containers nor unbounded on large
// hosts. Without a limit the fixed fallback applies.
func DefaultCacheCapacity(limit int64) int {
	if limit <= 0 {
		return fallbackCacheCapacity
	}
	capacity := int(limit / 10 / thumbnailSlotBytes)
	if capacity < minCacheCapacity {
		return minCacheCapacity
	}
	if capacity > maxCacheCapacity {
		return maxCacheCapacity
	}
	return capacity
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
