package thumbcache

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"

	"blend-browser/internal/blendfile"
	"blend-browser/internal/filesystem"
	"blend-browser/internal/logging"
	"blend-browser/internal/metrics"
)

// Disk record layout, fixed little-endian:
//
//	4 bytes  magic "BLTC"
//	4 bytes  format version (= 2)
//	8 bytes  signed source modification time, unix seconds
//	4 bytes  width
//	4 bytes  height
//	then width*height*4 raw RGBA bytes, omitted for negative records.
const (
	recordMagic   = "BLTC"
	recordVersion = 2
	recordSuffix  = ".thumb"
	recordHeader  = 4 + 4 + 8 + 4 + 4
)

// DiskStore persists decoded thumbnails in a cache directory, keyed by a
// hash of the absolute source path. Each record embeds the source file's
// modification time and self-invalidates when the live mtime disagrees.
//
// Records with zero dimensions are valid negative entries: the source was
// checked and carries no preview. Persisting those stops retry storms on
// thumbnail-less files.
type DiskStore struct {
	dir   string
	retry filesystem.RetryConfig
}

// NewDiskStore creates the cache directory if needed and returns a store.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail cache dir: %w", err)
	}
	return &DiskStore{dir: dir, retry: filesystem.DefaultRetryConfig()}, nil
}

// Dir returns the cache directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

// cachePath derives the record path from the source path alone. The mtime
// lives inside the record, never in the name, so a transient stat failure
// can never change which file is read or written.
func (s *DiskStore) cachePath(srcPath string) string {
	abs, err := filepath.Abs(srcPath)
	if err != nil {
		abs = srcPath
	}
	h := fnv.New64a()
	h.Write([]byte(abs))
	return filepath.Join(s.dir, fmt.Sprintf("%016x%s", h.Sum64(), recordSuffix))
}

// Save writes a record for srcPath, overwriting any previous one. Negative
// thumbnails are persisted like any other record, just without pixels.
func (s *DiskStore) Save(srcPath string, thumb *blendfile.Thumbnail) error {
	var mtime int64
	if info, err := filesystem.StatWithRetry(srcPath, s.retry); err == nil {
		mtime = info.ModTime().Unix()
	}

	width, height := 0, 0
	var pix []byte
	if !thumb.IsNegative() {
		width, height = thumb.Width, thumb.Height
		pix = thumb.Pix
	}

	buf := make([]byte, recordHeader, recordHeader+len(pix))
	copy(buf[0:4], recordMagic)
	binary.LittleEndian.PutUint32(buf[4:8], recordVersion)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(mtime))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(width))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(height))
	buf = append(buf, pix...)

	if err := os.WriteFile(s.cachePath(srcPath), buf, 0o644); err != nil {
		return fmt.Errorf("failed to write thumbnail record: %w", err)
	}
	return nil
}

// Load returns the cached thumbnail for srcPath. The second return value is
// false on any miss: no record, corrupt record, or a record whose stored
// mtime disagrees with a successful live stat. When the live stat itself
// fails the cached value is served as-is (stale-but-available).
func (s *DiskStore) Load(srcPath string) (*blendfile.Thumbnail, bool) {
	data, err := filesystem.ReadFileWithRetry(s.cachePath(srcPath), s.retry)
	if err != nil {
		metrics.DiskCacheMisses.Inc()
		return nil, false
	}

	if len(data) < recordHeader || string(data[0:4]) != recordMagic ||
		binary.LittleEndian.Uint32(data[4:8]) != recordVersion {
		metrics.DiskCacheCorruptions.Inc()
		metrics.DiskCacheMisses.Inc()
		return nil, false
	}

	storedMtime := int64(binary.LittleEndian.Uint64(data[8:16]))
	width := int(int32(binary.LittleEndian.Uint32(data[16:20])))
	height := int(int32(binary.LittleEndian.Uint32(data[20:24])))

	if info, statErr := filesystem.StatWithRetry(srcPath, s.retry); statErr == nil {
		if info.ModTime().Unix() != storedMtime {
			logging.Debug("Thumbnail record stale for %s, re-parsing", srcPath)
			metrics.DiskCacheMisses.Inc()
			return nil, false
		}
	}

	if width == 0 && height == 0 {
		metrics.DiskCacheHits.Inc()
		return blendfile.Negative(), true
	}

	if width < 0 || height < 0 || len(data) != recordHeader+width*height*4 {
		metrics.DiskCacheCorruptions.Inc()
		metrics.DiskCacheMisses.Inc()
		return nil, false
	}

	metrics.DiskCacheHits.Inc()
	return &blendfile.Thumbnail{
		Width:  width,
		Height: height,
		Pix:    data[recordHeader:],
	}, true
}
