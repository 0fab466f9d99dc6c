package thumbcache

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"blend-browser/internal/logging"
	"blend-browser/internal/memory"
	"blend-browser/internal/metrics"
	"blend-browser/internal/workers"
)

const (
	// defaultWorkerCap bounds the loader pool when no explicit size is
	// given; loads are disk-bound, so more buys nothing.
	defaultWorkerCap = 8

	// DefaultCooldown is the window after an eviction or a fresh load in
	// which re-requests for a path are suppressed to stop cache thrash.
	DefaultCooldown = 5 * time.Second

	// defaultIdleBackoff is how long an idle worker sleeps off-lock.
	defaultIdleBackoff = 10 * time.Millisecond
)

// Options configures a Coordinator. All dependencies are passed explicitly;
// nothing is read from the environment at point of use.
type Options struct {
	Store    *DiskStore
	Uploader TextureUploader

	// Capacity is the maximum number of cached textures; zero derives it
	// from the process memory limit. Workers sizes the loader pool; zero
	// sizes it from the workers package parse profile. Cooldown is the
	// anti-thrash window (DefaultCooldown when zero).
	Capacity int
	Workers  int
	Cooldown time.Duration
}

// cacheEntry is one resident cache slot. Entries holding the shared
// placeholder handle are cached negatives; their handle is never released.
type cacheEntry struct {
	texture uint32
	path    string
}

// Coordinator is the caller-facing thumbnail cache: a bounded LRU of
// ready-to-display texture handles populated by a fixed pool of loader
// goroutines.
//
// GetTexture, RequestThumbnail, ProcessLoadedThumbnails, Clear and Close
// must all be called from the one goroutine that owns the graphics
// resources. Workers never touch textures or the LRU structures; they
// communicate only through the two internally locked queues.
type Coordinator struct {
	capacity    int
	cooldown    time.Duration
	idleBackoff time.Duration

	store       *DiskStore
	uploader    TextureUploader
	placeholder uint32

	// Owner-goroutine state, intentionally unsynchronized.
	lru       *list.List // front = most recently used
	entries   map[string]*list.Element
	cooldowns map[string]time.Time

	// Request queue, shared with workers.
	queueMu sync.Mutex
	queue   []string
	loading map[string]struct{}

	// Result queue, shared with workers. Never locked together with
	// queueMu.
	resultMu sync.Mutex
	results  []loadResult

	stopFlag atomic.Bool
	wg       sync.WaitGroup

	totalRequested atomic.Uint64
	totalLoaded    atomic.Uint64

	// now is replaceable in tests to step the cooldown clock.
	now func() time.Time
}

// NewCoordinator uploads the shared placeholder texture and starts the
// loader pool.
func NewCoordinator(opts Options) (*Coordinator, error) {
	return newCoordinator(opts, true)
}

func newCoordinator(opts Options, startWorkers bool) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("thumbcache: Options.Store is required")
	}
	if opts.Uploader == nil {
		return nil, fmt.Errorf("thumbcache: Options.Uploader is required")
	}

	c := &Coordinator{
		capacity:    opts.Capacity,
		cooldown:    opts.Cooldown,
		idleBackoff: defaultIdleBackoff,
		store:       opts.Store,
		uploader:    opts.Uploader,
		lru:         list.New(),
		entries:     make(map[string]*list.Element),
		cooldowns:   make(map[string]time.Time),
		loading:     make(map[string]struct{}),
		now:         time.Now,
	}
	if c.capacity <= 0 {
		c.capacity = memory.DefaultCacheCapacity(memory.EffectiveLimit())
	}
	if c.cooldown <= 0 {
		c.cooldown = DefaultCooldown
	}

	poolSize := opts.Workers
	if poolSize <= 0 {
		poolSize = workers.ForParsing(defaultWorkerCap)
	}

	placeholder, err := c.uploader.Upload(placeholderThumbnail())
	if err != nil {
		return nil, fmt.Errorf("thumbcache: failed to upload placeholder: %w", err)
	}
	c.placeholder = placeholder

	if startWorkers {
		for i := 0; i < poolSize; i++ {
			c.wg.Add(1)
			go c.worker()
		}
		logging.Debug("Thumbnail cache started: capacity=%d workers=%d cooldown=%v",
			c.capacity, poolSize, c.cooldown)
	}

	return c, nil
}

// PlaceholderTexture returns the shared placeholder handle shown for
// loading, absent and failed thumbnails.
func (c *Coordinator) PlaceholderTexture() uint32 {
	return c.placeholder
}

// GetTexture returns the texture handle for a blend file's thumbnail. A
// cache hit is promoted to most recently used. A miss enqueues a load
// unless the path is already in flight or inside its cooldown window, and
// returns the placeholder either way.
func (c *Coordinator) GetTexture(path string) uint32 {
	if path == "" {
		return c.placeholder
	}

	if elem, ok := c.entries[path]; ok {
		c.lru.MoveToFront(elem)
		metrics.ThumbnailCacheHits.Inc()
		return elem.Value.(*cacheEntry).texture
	}
	metrics.ThumbnailCacheMisses.Inc()

	if c.inCooldown(path) {
		metrics.ThumbnailCooldownSuppressed.Inc()
		return c.placeholder
	}

	c.RequestThumbnail(path)
	return c.placeholder
}

// RequestThumbnail enqueues a load for path unless it is already cached,
// already in flight, or cooling down.
func (c *Coordinator) RequestThumbnail(path string) {
	if path == "" {
		return
	}
	if _, ok := c.entries[path]; ok {
		return
	}
	if c.inCooldown(path) {
		return
	}

	c.queueMu.Lock()
	defer c.queueMu.Unlock()

	if _, ok := c.loading[path]; ok {
		return
	}
	c.loading[path] = struct{}{}
	c.queue = append(c.queue, path)
	c.totalRequested.Add(1)
	metrics.ThumbnailLoadQueueDepth.Set(float64(len(c.queue)))
}

// inCooldown reports whether path is inside its cooldown window, clearing
// expired entries so the path becomes requestable again.
func (c *Coordinator) inCooldown(path string) bool {
	stamp, ok := c.cooldowns[path]
	if !ok {
		return false
	}
	if c.now().Sub(stamp) >= c.cooldown {
		delete(c.cooldowns, path)
		return false
	}
	return true
}

// ProcessLoadedThumbnails drains completed loads and installs them as
// cache entries, uploading textures on the calling goroutine. Call it once
// per tick from the resource-owning goroutine.
//
// The whole result queue is swapped out under its lock so no lock is held
// during uploads. Negative results are installed with the placeholder
// handle; a placeholder result never overwrites an existing real entry,
// and when duplicate loads for one path resolve in the same batch the
// first real thumbnail wins.
func (c *Coordinator) ProcessLoadedThumbnails() {
	c.resultMu.Lock()
	batch := c.results
	c.results = nil
	c.resultMu.Unlock()

	if len(batch) == 0 {
		return
	}

	for _, res := range batch {
		handle := c.placeholder
		if !res.thumb.IsNegative() {
			id, err := c.uploader.Upload(res.thumb)
			if err != nil {
				logging.Warn("Texture upload failed for %s: %v", res.path, err)
			} else {
				handle = id
			}
		}

		c.install(res.path, handle)

		c.cooldowns[res.path] = c.now()
		c.totalLoaded.Add(1)

		c.queueMu.Lock()
		delete(c.loading, res.path)
		c.queueMu.Unlock()
	}

	metrics.ThumbnailCacheEntries.Set(float64(c.lru.Len()))
}

// install adds or refreshes the entry for path.
func (c *Coordinator) install(path string, handle uint32) {
	if elem, ok := c.entries[path]; ok {
		entry := elem.Value.(*cacheEntry)
		if entry.texture != c.placeholder {
			// First real thumbnail wins; a redundant or downgraded
			// result never replaces a displayed texture.
			if handle != c.placeholder && handle != entry.texture {
				c.uploader.Release(handle)
			}
			return
		}
		entry.texture = handle
		c.lru.MoveToFront(elem)
		return
	}

	for c.lru.Len() >= c.capacity {
		c.evictOldest()
	}

	c.entries[path] = c.lru.PushFront(&cacheEntry{texture: handle, path: path})
}

// evictOldest removes the least recently used entry and stamps its path
// into the cooldown map.
func (c *Coordinator) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*cacheEntry)
	if entry.texture != c.placeholder {
		c.uploader.Release(entry.texture)
	}
	delete(c.entries, entry.path)
	c.lru.Remove(elem)
	c.cooldowns[entry.path] = c.now()
	metrics.ThumbnailCacheEvictions.Inc()
}

// IsLoading reports whether a load for path is queued or in progress.
func (c *Coordinator) IsLoading(path string) bool {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	_, ok := c.loading[path]
	return ok
}

// GetLoadingProgress returns the number of paths still pending and the
// total requested since the last Clear.
func (c *Coordinator) GetLoadingProgress() (pending, total int) {
	c.queueMu.Lock()
	pending = len(c.loading)
	c.queueMu.Unlock()
	return pending, int(c.totalRequested.Load())
}

// IsLoadingThumbnails reports whether any loads are pending.
func (c *Coordinator) IsLoadingThumbnails() bool {
	pending, _ := c.GetLoadingProgress()
	return pending > 0
}

// Clear drops all queued-but-unstarted requests, releases every real
// texture (never the shared placeholder) and resets all bookkeeping.
func (c *Coordinator) Clear() {
	c.queueMu.Lock()
	c.queue = nil
	c.loading = make(map[string]struct{})
	metrics.ThumbnailLoadQueueDepth.Set(0)
	c.queueMu.Unlock()

	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if entry := elem.Value.(*cacheEntry); entry.texture != c.placeholder {
			c.uploader.Release(entry.texture)
		}
	}
	c.lru.Init()
	c.entries = make(map[string]*list.Element)
	c.cooldowns = make(map[string]time.Time)
	c.totalRequested.Store(0)
	c.totalLoaded.Store(0)
	metrics.ThumbnailCacheEntries.Set(0)
}

// Len returns the number of resident cache entries.
func (c *Coordinator) Len() int {
	return c.lru.Len()
}

// Close stops the loader pool, waits for in-progress parses to finish
// naturally, then releases every texture including the placeholder.
func (c *Coordinator) Close() {
	c.stopFlag.Store(true)
	c.wg.Wait()
	c.Clear()
	c.uploader.Release(c.placeholder)
}
