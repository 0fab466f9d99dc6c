package thumbcache

import (
	"time"

	"blend-browser/internal/blendfile"
	"blend-browser/internal/filesystem"
	"blend-browser/internal/logging"
	"blend-browser/internal/metrics"
)

// loadResult is one completed load awaiting the drain step.
type loadResult struct {
	path  string
	thumb *blendfile.Thumbnail
}

// Resolve produces the thumbnail for path: disk store first, then a quick
// parse of the source, persisting whatever it learned. Every failure is
// absorbed into the negative sentinel, so the result is never nil. This is
// the single resolution path shared by the worker pool and the HTTP layer.
func Resolve(store *DiskStore, path string) *blendfile.Thumbnail {
	if thumb, ok := store.Load(path); ok {
		return thumb
	}

	// Vanished or inaccessible sources are persisted as permanent
	// negatives so they are never re-scanned on every viewport pass.
	if _, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig()); err != nil {
		neg := blendfile.Negative()
		if saveErr := store.Save(path, neg); saveErr != nil {
			logging.Warn("Failed to persist negative record for %s: %v", path, saveErr)
		}
		metrics.ThumbnailLoadsTotal.WithLabelValues("negative").Inc()
		return neg
	}

	thumb := blendfile.Negative()
	info, err := blendfile.ParseQuick(path)
	switch {
	case err != nil:
		logging.Debug("Parse failed for %s, caching negative: %v", path, err)
	case info.Thumbnail != nil:
		thumb = info.Thumbnail
	}

	if saveErr := store.Save(path, thumb); saveErr != nil {
		logging.Warn("Failed to persist thumbnail record for %s: %v", path, saveErr)
	}

	if thumb.IsNegative() {
		metrics.ThumbnailLoadsTotal.WithLabelValues("negative").Inc()
	} else {
		metrics.ThumbnailLoadsTotal.WithLabelValues("thumbnail").Inc()
	}
	return thumb
}

// worker is the loader goroutine body. Workers poll the request queue; on
// an empty queue they drop the lock and back off with a short sleep so the
// producer side is never starved. The request lock and the result lock are
// never held together.
func (c *Coordinator) worker() {
	defer c.wg.Done()

	for !c.stopFlag.Load() {
		var path string
		c.queueMu.Lock()
		if len(c.queue) > 0 {
			path = c.queue[0]
			c.queue = c.queue[1:]
			metrics.ThumbnailLoadQueueDepth.Set(float64(len(c.queue)))
		}
		c.queueMu.Unlock()

		if path == "" {
			time.Sleep(c.idleBackoff)
			continue
		}

		thumb := Resolve(c.store, path)

		// Exactly one result per request, success or not, so the
		// in-flight bookkeeping for the path always clears.
		c.resultMu.Lock()
		c.results = append(c.results, loadResult{path: path, thumb: thumb})
		c.resultMu.Unlock()
	}
}
