package scanner

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"blend-browser/internal/database"
)

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})
	return db
}

// writeBlend writes a minimal little-endian 32-bit blend file. withThumb
// adds a 2x2 thumbnail chunk before the end marker.
func writeBlend(t *testing.T, path string, withThumb bool) {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("BLENDER_v402")

	writeChunk := func(code string, body []byte) {
		buf.WriteString(code)
		binary.Write(&buf, binary.LittleEndian, uint32(len(body)))
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // old address
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // structure index
		binary.Write(&buf, binary.LittleEndian, uint32(1)) // element count
		buf.Write(body)
	}

	if withThumb {
		body := make([]byte, 8, 8+16)
		binary.LittleEndian.PutUint32(body[0:4], 2)
		binary.LittleEndian.PutUint32(body[4:8], 2)
		writeChunk("TEST", append(body, bytes.Repeat([]byte{0xff}, 16)...))
	}
	writeChunk("ENDB", nil)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("Failed to write blend file: %v", err)
	}
}

// writeCompressedBlend writes a gzip-compressed blend file.
func writeCompressedBlend(t *testing.T, path string) {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte("BLENDER_v305compressed payload")); err != nil {
		t.Fatalf("Failed to compress payload: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close gzip writer: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("Failed to write blend file: %v", err)
	}
}

func seedLibrary(t *testing.T, dir string) {
	t.Helper()

	writeBlend(t, filepath.Join(dir, "scene.blend"), true)
	writeBlend(t, filepath.Join(dir, "props", "barrel.blend"), false)
	writeCompressedBlend(t, filepath.Join(dir, "archive", "old_city.blend"))

	// Everything below must be ignored by the walk.
	writeBlend(t, filepath.Join(dir, "scene.blend1"), true)
	writeBlend(t, filepath.Join(dir, ".hidden", "secret.blend"), true)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("notes"), 0o644); err != nil {
		t.Fatalf("Failed to write text file: %v", err)
	}
}

func newTestScanner(t *testing.T, db *database.Database, dir string) *Scanner {
	t.Helper()
	s := New(db, dir, time.Hour)
	s.SetParallelConfig(ParallelWalkerConfig{
		NumWorkers:    2,
		BatchSize:     10,
		ChannelBuffer: 16,
		SkipHidden:    true,
	})
	return s
}

func TestIsBlendFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"scene.blend", true},
		{"SCENE.BLEND", true},
		{"scene.blend1", false},
		{"scene.blend2", false},
		{"scene.blend.bak", false},
		{"notes.txt", false},
		{"blend", false},
	}

	for _, tt := range tests {
		if got := isBlendFile(tt.name); got != tt.want {
			t.Errorf("isBlendFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestScanIndexesLibrary(t *testing.T) {
	dir := t.TempDir()
	seedLibrary(t, dir)
	db := setupTestDB(t)
	s := newTestScanner(t, db, dir)

	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	ctx := context.Background()

	scene, err := db.GetFileByPath(ctx, "scene.blend")
	if err != nil {
		t.Fatalf("scene.blend not indexed: %v", err)
	}
	if scene.Version != "4.02" || !scene.HasThumbnail || scene.Compressed {
		t.Errorf("scene.blend = %+v, want version 4.02 with thumbnail, uncompressed", scene)
	}
	if scene.ParentPath != "" {
		t.Errorf("scene.blend ParentPath = %q, want empty", scene.ParentPath)
	}

	barrel, err := db.GetFileByPath(ctx, filepath.Join("props", "barrel.blend"))
	if err != nil {
		t.Fatalf("props/barrel.blend not indexed: %v", err)
	}
	if barrel.HasThumbnail {
		t.Error("barrel.blend HasThumbnail = true, want false")
	}
	if barrel.ParentPath != "props" {
		t.Errorf("barrel.blend ParentPath = %q, want props", barrel.ParentPath)
	}

	archive, err := db.GetFileByPath(ctx, filepath.Join("archive", "old_city.blend"))
	if err != nil {
		t.Fatalf("archive/old_city.blend not indexed: %v", err)
	}
	if !archive.Compressed || archive.HasThumbnail {
		t.Errorf("old_city.blend = %+v, want compressed without thumbnail", archive)
	}

	listing, err := db.ListFiles(ctx, database.ListOptions{})
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}
	if listing.TotalItems != 3 {
		t.Errorf("TotalItems = %d, want 3 (backups, hidden and non-blend files skipped)", listing.TotalItems)
	}
}

func TestScanPrunesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	seedLibrary(t, dir)
	db := setupTestDB(t)
	s := newTestScanner(t, db, dir)

	if err := s.Scan(); err != nil {
		t.Fatalf("first Scan() failed: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "scene.blend")); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}

	// A same-second rescan would not age out the stale row because
	// updated_at has one second granularity.
	time.Sleep(1100 * time.Millisecond)

	if err := s.Scan(); err != nil {
		t.Fatalf("second Scan() failed: %v", err)
	}

	if _, err := db.GetFileByPath(context.Background(), "scene.blend"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("removed file still indexed, err = %v", err)
	}
	if _, err := db.GetFileByPath(context.Background(), filepath.Join("props", "barrel.blend")); err != nil {
		t.Errorf("surviving file lost during prune: %v", err)
	}
}

func TestScanRefreshesStats(t *testing.T) {
	dir := t.TempDir()
	seedLibrary(t, dir)
	db := setupTestDB(t)
	s := newTestScanner(t, db, dir)

	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	stats := db.GetStats()
	if stats.TotalFiles != 3 || stats.FilesWithThumbnail != 1 || stats.CompressedFiles != 1 {
		t.Errorf("stats = %+v, want 3 files, 1 with thumbnail, 1 compressed", stats)
	}
	if stats.LastScanned.IsZero() || stats.ScanDuration == "" {
		t.Errorf("scan bookkeeping missing from stats: %+v", stats)
	}

	lastScan, err := db.GetLastScan(context.Background())
	if err != nil {
		t.Fatalf("GetLastScan() failed: %v", err)
	}
	if lastScan.IsZero() {
		t.Error("last scan timestamp not persisted")
	}
}

func TestScanMarksReady(t *testing.T) {
	dir := t.TempDir()
	db := setupTestDB(t)
	s := newTestScanner(t, db, dir)

	if s.IsReady() {
		t.Error("IsReady() = true before any scan")
	}
	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if !s.IsReady() {
		t.Error("IsReady() = false after scan")
	}
	if s.IsScanning() {
		t.Error("IsScanning() = true after scan returned")
	}
	if s.LastScanTime().IsZero() {
		t.Error("LastScanTime() is zero after scan")
	}
}

func TestScanCompleteCallback(t *testing.T) {
	dir := t.TempDir()
	writeBlend(t, filepath.Join(dir, "scene.blend"), false)
	db := setupTestDB(t)
	s := newTestScanner(t, db, dir)

	called := false
	s.SetOnScanComplete(func() { called = true })

	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if !called {
		t.Error("scan completion callback not invoked")
	}
}

func TestDetectChanges(t *testing.T) {
	dir := t.TempDir()
	seedLibrary(t, dir)
	db := setupTestDB(t)
	s := newTestScanner(t, db, dir)

	s.updateLastKnownState()

	changed, err := s.detectChanges()
	if err != nil {
		t.Fatalf("detectChanges() failed: %v", err)
	}
	if changed {
		t.Error("detectChanges() = true on an unchanged library")
	}

	// New top-level entry must trip the poll.
	writeBlend(t, filepath.Join(dir, "new_scene.blend"), false)

	changed, err = s.detectChanges()
	if err != nil {
		t.Fatalf("detectChanges() failed: %v", err)
	}
	if !changed {
		t.Error("detectChanges() = false after adding a file")
	}
}

func TestGetHealthStatus(t *testing.T) {
	dir := t.TempDir()
	writeBlend(t, filepath.Join(dir, "scene.blend"), false)
	db := setupTestDB(t)
	s := newTestScanner(t, db, dir)

	status := s.GetHealthStatus()
	if status.Ready {
		t.Error("Ready = true before initial scan")
	}

	if err := s.Scan(); err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	status = s.GetHealthStatus()
	if !status.Ready || status.Scanning {
		t.Errorf("status = %+v after scan, want ready and idle", status)
	}
	if status.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1", status.FilesScanned)
	}
}
