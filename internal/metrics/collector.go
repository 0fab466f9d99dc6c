package metrics

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"blend-browser/internal/logging"
)

// StatsProvider supplies library statistics for periodic export.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current library statistics.
type Stats struct {
	TotalFiles      int
	FilesWithThumbs int
	CompressedFiles int
	TotalTags       int
}

// Collector periodically collects and updates gauge metrics that are
// derived from external state: the database, the disk thumbnail cache
// directory, and the Go runtime.
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	cacheDir      string
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector. dbPath and cacheDir may be
// empty to skip the corresponding size gauges.
func NewCollector(provider StatsProvider, dbPath, cacheDir string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		cacheDir:      cacheDir,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider != nil {
		stats := c.statsProvider.GetStats()
		LibraryFilesTotal.Set(float64(stats.TotalFiles))
		LibraryFilesWithThumbnails.Set(float64(stats.FilesWithThumbs))
		LibraryCompressedFiles.Set(float64(stats.CompressedFiles))
		LibraryTagsTotal.Set(float64(stats.TotalTags))
	}

	c.collectDatabaseSizes()
	c.collectDiskCacheSize()

	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < 1<<62 {
		GoMemLimit.Set(float64(limit))
	}
}

func (c *Collector) collectDatabaseSizes() {
	if c.dbPath == "" {
		return
	}
	for suffix, label := range map[string]string{"": "main", "-wal": "wal", "-shm": "shm"} {
		info, err := os.Stat(c.dbPath + suffix)
		if err != nil {
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}

func (c *Collector) collectDiskCacheSize() {
	if c.cacheDir == "" {
		return
	}

	var totalBytes int64
	var count int
	err := filepath.WalkDir(c.cacheDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr // unreadable entries are simply not counted
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		totalBytes += info.Size()
		count++
		return nil
	})
	if err != nil {
		logging.Debug("Disk cache size collection failed: %v", err)
		return
	}

	DiskCacheSizeBytes.Set(float64(totalBytes))
	DiskCacheFileCount.Set(float64(count))
}
