// Package thumbcache loads blend file preview thumbnails off the display
// thread and caches them at two tiers.
//
// The DiskStore persists decoded images (including explicit negative
// records for files with no preview) under a path-hash filename, each
// record self-invalidating via an embedded source modification time. The
// Coordinator fronts a bounded in-memory LRU of GPU texture handles,
// populated by a fixed pool of loader goroutines that consult the DiskStore
// before falling back to a quick parse of the source file.
//
// # Threading
//
// Exactly one goroutine owns graphics resources. GetTexture,
// RequestThumbnail, ProcessLoadedThumbnails, Clear and Close belong to that
// goroutine; ProcessLoadedThumbnails must run once per tick to drain worker
// results and perform uploads. Workers communicate only through the two
// internally locked FIFO queues and never hold both locks at once, and each
// path has at most one load in flight.
//
// # Anti-thrash
//
// A path that was just loaded or just evicted enters a cooldown window
// during which re-requests return the placeholder without enqueueing
// anything. Without it, a viewport showing more items than the cache holds
// would evict and reload the same thumbnails every frame.
package thumbcache
