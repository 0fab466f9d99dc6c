// Package filesystem wraps os file operations with bounded retries for
// the transient failures network volumes produce (ESTALE, EINTR).
package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"blend-browser/internal/logging"
)

// VolumeResolver labels file paths with the volume they live on, for
// metric attribution. Longest configured prefix wins.
type VolumeResolver struct {
	mounts []volumeMount
}

type volumeMount struct {
	prefix string // absolute, trailing slash
	label  string
}

const unknownVolume = "unknown"

// NewVolumeResolver builds a resolver from label -> mount path, e.g.
// {"library": "/blends", "cache": "/cache", "database": "/data"}.
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	vr := &VolumeResolver{}
	for label, path := range volumes {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		vr.mounts = append(vr.mounts, volumeMount{
			prefix: strings.TrimSuffix(path, "/") + "/",
			label:  label,
		})
	}

	// Most specific mount first, so nested mounts resolve correctly.
	sort.Slice(vr.mounts, func(i, j int) bool {
		return len(vr.mounts[i].prefix) > len(vr.mounts[j].prefix)
	})
	return vr
}

// Resolve returns the volume label for path, or "unknown" when no
// configured mount contains it. A nil resolver resolves everything to
// "unknown".
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return unknownVolume
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return unknownVolume
	}
	for _, m := range vr.mounts {
		if strings.HasPrefix(abs+"/", m.prefix) {
			return m.label
		}
	}
	return unknownVolume
}

var defaultResolver *VolumeResolver

// SetDefaultVolumeResolver installs the package-level resolver. Called
// once at startup, before any retrying operation runs.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver = vr
}

// RetryConfig bounds the retry loop. VolumeResolver, when set, overrides
// the package-level resolver for this operation only.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig caps a stale-handle recovery at roughly one second
// of total waiting.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c *RetryConfig) resolveVolume(path string) string {
	if c.VolumeResolver != nil {
		return c.VolumeResolver.Resolve(path)
	}
	return defaultResolver.Resolve(path)
}

// isRetryableError reports whether a failed syscall is worth repeating.
// Only ESTALE and EINTR qualify; everything else, including ENOENT and
// permission errors, fails immediately.
func isRetryableError(err error) bool {
	var errno syscall.Errno
	if err == nil || !errors.As(err, &errno) {
		return false
	}
	return errno == syscall.ESTALE || errno == syscall.EINTR
}

// withRetry runs fn with exponential backoff between retryable failures.
// The observer sees one ObserveOperation per call covering all attempts.
func withRetry[T any](opName, path string, config RetryConfig, fn func() (T, error)) (T, error) {
	start := time.Now()
	volume := config.resolveVolume(path)

	var result T
	var err error
	delay := config.InitialBackoff
	for attempt := 0; ; attempt++ {
		result, err = fn()
		if err == nil || !isRetryableError(err) || attempt >= config.MaxRetries {
			break
		}

		if o := defaultObserver; o != nil {
			o.ObserveRetryAttempt(opName, volume)
		}
		logging.Debug("Retryable %s error for %s, retrying in %v (attempt %d/%d): %v",
			opName, path, delay, attempt+1, config.MaxRetries, err)
		time.Sleep(delay)
		if delay *= 2; delay > config.MaxBackoff {
			delay = config.MaxBackoff
		}
	}

	if isRetryableError(err) {
		logging.Warn("%s failed after %d retries for %s: %v", opName, config.MaxRetries, path, err)
		if o := defaultObserver; o != nil {
			o.ObserveRetryFailure(opName, volume)
		}
	}
	if o := defaultObserver; o != nil {
		o.ObserveOperation(volume, opName, time.Since(start).Seconds(), err)
	}
	return result, err
}

// StatWithRetry is os.Stat hardened against stale NFS handles.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry("stat", path, config, func() (os.FileInfo, error) {
		return os.Stat(path)
	})
}

// OpenWithRetry is os.Open hardened against stale NFS handles.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	return withRetry("open", path, config, func() (*os.File, error) {
		return os.Open(path)
	})
}

// ReadFileWithRetry is os.ReadFile hardened against stale NFS handles.
func ReadFileWithRetry(path string, config RetryConfig) ([]byte, error) {
	return withRetry("read", path, config, func() ([]byte, error) {
		return os.ReadFile(path)
	})
}
