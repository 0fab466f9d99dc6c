package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"blend-browser/internal/blendfile"
	"blend-browser/internal/database"
	"blend-browser/internal/logging"
	"blend-browser/internal/metrics"
	"blend-browser/internal/workers"
)

// ParallelWalkerConfig tunes the concurrent library walk.
type ParallelWalkerConfig struct {
	// NumWorkers is the number of concurrent header parsers.
	NumWorkers int
	// BatchSize is the number of records per database insert batch.
	BatchSize int
	// ChannelBuffer bounds how far enumeration may run ahead of parsing.
	ChannelBuffer int
	// SkipHidden excludes dot-files and dot-directories from the walk.
	SkipHidden bool
}

// DefaultParallelWalkerConfig sizes the parser pool for the host, capped
// at a level that stays polite on network filesystems.
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	return ParallelWalkerConfig{
		NumWorkers:    workers.ForParsing(defaultWorkerCap),
		BatchSize:     500,
		ChannelBuffer: 1000,
		SkipHidden:    true,
	}
}

const defaultWorkerCap = 8

// isBlendFile reports whether name is a blend file by extension. Blender's
// numbered backups (.blend1, .blend2) are deliberately excluded.
func isBlendFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".blend")
}

// ParallelWalker enumerates a library directory and parses blend headers
// on a worker pool. Enumeration and parsing overlap: paths flow through a
// bounded channel while each worker appends finished records under a
// shared lock.
type ParallelWalker struct {
	config     ParallelWalkerConfig
	libraryDir string

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	files []database.BlendFile

	filesSeen   atomic.Int64
	parseErrors atomic.Int64
}

// NewParallelWalker creates a walker rooted at libraryDir. Call Walk once;
// Stop aborts an in-progress walk.
func NewParallelWalker(libraryDir string, config ParallelWalkerConfig) *ParallelWalker {
	ctx, cancel := context.WithCancel(context.Background())
	return &ParallelWalker{
		config:     config,
		libraryDir: libraryDir,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Walk enumerates the library and returns one record per blend file,
// ordered arbitrarily. Cancellation via Stop is not an error: Walk returns
// whatever was collected before the abort.
func (pw *ParallelWalker) Walk() ([]database.BlendFile, error) {
	start := time.Now()
	logging.Info("Walking %s with %d parse workers", pw.libraryDir, pw.config.NumWorkers)
	metrics.ScannerParallelWorkers.Set(float64(pw.config.NumWorkers))

	paths := make(chan string, pw.config.ChannelBuffer)

	var wg sync.WaitGroup
	for i := 0; i < pw.config.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				if pw.ctx.Err() != nil {
					continue
				}
				pw.process(path)
			}
		}()
	}

	walkErr := pw.enumerate(paths)
	close(paths)
	wg.Wait()

	if walkErr != nil && !errors.Is(walkErr, fs.SkipAll) {
		return pw.files, walkErr
	}

	logging.Info("Walk finished: %d blend files, %d parse errors in %v",
		pw.filesSeen.Load(), pw.parseErrors.Load(), time.Since(start).Round(time.Millisecond))
	return pw.files, nil
}

// enumerate feeds blend file paths into the channel. A cancelled context
// surfaces as fs.SkipAll, which Walk treats as a clean abort.
func (pw *ParallelWalker) enumerate(paths chan<- string) error {
	return filepath.WalkDir(pw.libraryDir, func(path string, d fs.DirEntry, err error) error {
		if pw.ctx.Err() != nil {
			return fs.SkipAll
		}
		if err != nil {
			logging.Error("Walk error at %s: %v", path, err)
			pw.parseErrors.Add(1)
			return nil
		}
		if path == pw.libraryDir {
			return nil
		}

		if pw.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isBlendFile(d.Name()) {
			return nil
		}

		select {
		case paths <- path:
			return nil
		case <-pw.ctx.Done():
			return fs.SkipAll
		}
	})
}

// process parses one blend header and appends its record. A file whose
// header cannot be read is still listed, with empty metadata, so the
// library view matches the filesystem.
func (pw *ParallelWalker) process(path string) {
	rel, err := filepath.Rel(pw.libraryDir, path)
	if err != nil {
		logging.Error("Failed to relativize %s: %v", path, err)
		pw.parseErrors.Add(1)
		return
	}

	record := database.BlendFile{
		Name:       filepath.Base(path),
		Path:       rel,
		ParentPath: parentOf(rel),
	}

	info, err := blendfile.ParseQuick(path)
	if err != nil {
		logging.Debug("Unreadable blend header %s: %v", rel, err)
		pw.parseErrors.Add(1)
		if st, statErr := os.Stat(path); statErr == nil {
			record.Size = st.Size()
			record.ModTime = st.ModTime()
		}
	} else {
		record.Size = info.Size
		record.ModTime = info.ModTime
		record.Version = info.Version
		record.Compressed = info.Compressed
		record.HasThumbnail = info.Thumbnail != nil
	}

	pw.mu.Lock()
	pw.files = append(pw.files, record)
	pw.mu.Unlock()
	pw.filesSeen.Add(1)
}

// parentOf returns the library-relative directory of rel, empty for files
// at the library root.
func parentOf(rel string) string {
	parent := filepath.Dir(rel)
	if parent == "." {
		return ""
	}
	return parent
}

// Stop aborts an in-progress walk. Safe to call more than once.
func (pw *ParallelWalker) Stop() {
	pw.cancel()
}

// Stats returns the number of blend files recorded and the number of
// enumeration or parse errors so far.
func (pw *ParallelWalker) Stats() (int64, int64) {
	return pw.filesSeen.Load(), pw.parseErrors.Load()
}
