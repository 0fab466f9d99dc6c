package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t testing.TB) *Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(context.Background(), dbPath)
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

func testFile(path string, modTime time.Time) *BlendFile {
	return &BlendFile{
		Name:         filepath.Base(path),
		Path:         path,
		ParentPath:   filepath.Dir(path),
		Size:         2048,
		ModTime:      modTime,
		Version:      "4.02",
		HasThumbnail: true,
	}
}

func mustUpsert(t *testing.T, db *Database, files ...*BlendFile) {
	t.Helper()
	if err := db.UpsertFiles(files); err != nil {
		t.Fatalf("UpsertFiles() failed: %v", err)
	}
}

func TestNewDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNewDatabaseMissingDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing", "test.db")

	db, err := New(context.Background(), dbPath)
	if err == nil {
		db.Close()
		t.Fatal("New() succeeded with a missing parent directory")
	}
}

func TestUpsertAndGetFile(t *testing.T) {
	db := setupTestDB(t)
	modTime := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	original := testFile("/library/scene.blend", modTime)
	original.Compressed = false
	mustUpsert(t, db, original)

	got, err := db.GetFileByPath(context.Background(), "/library/scene.blend")
	if err != nil {
		t.Fatalf("GetFileByPath() failed: %v", err)
	}

	if got.Name != "scene.blend" {
		t.Errorf("Name = %q, want scene.blend", got.Name)
	}
	if got.ParentPath != "/library" {
		t.Errorf("ParentPath = %q, want /library", got.ParentPath)
	}
	if got.Version != "4.02" {
		t.Errorf("Version = %q, want 4.02", got.Version)
	}
	if !got.HasThumbnail {
		t.Error("HasThumbnail = false, want true")
	}
	if got.Compressed {
		t.Error("Compressed = true, want false")
	}
	if !got.ModTime.Equal(modTime) {
		t.Errorf("ModTime = %v, want %v", got.ModTime, modTime)
	}
}

func TestUpsertFileConflictUpdates(t *testing.T) {
	db := setupTestDB(t)
	modTime := time.Now().Truncate(time.Second)

	file := testFile("/library/scene.blend", modTime)
	mustUpsert(t, db, file)

	updated := testFile("/library/scene.blend", modTime.Add(time.Hour))
	updated.Size = 4096
	updated.Version = "4.05"
	updated.Compressed = true
	updated.HasThumbnail = false
	mustUpsert(t, db, updated)

	got, err := db.GetFileByPath(context.Background(), "/library/scene.blend")
	if err != nil {
		t.Fatalf("GetFileByPath() failed: %v", err)
	}
	if got.Size != 4096 || got.Version != "4.05" || !got.Compressed || got.HasThumbnail {
		t.Errorf("upsert did not replace fields: %+v", got)
	}

	listing, err := db.ListFiles(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}
	if listing.TotalItems != 1 {
		t.Errorf("TotalItems = %d after conflicting upsert, want 1", listing.TotalItems)
	}
}

func TestGetFileByPathMissing(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetFileByPath(context.Background(), "/library/missing.blend")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetFileByPath(missing) error = %v, want sql.ErrNoRows", err)
	}
}

func TestDeleteMissingFiles(t *testing.T) {
	db := setupTestDB(t)
	modTime := time.Now()

	mustUpsert(t, db,
		testFile("/library/keep.blend", modTime),
		testFile("/library/stale.blend", modTime),
	)

	// Age both rows past the cutoff, then re-touch only keep.blend the
	// way a scan pass would.
	if _, err := db.db.Exec("UPDATE files SET updated_at = updated_at - 3600"); err != nil {
		t.Fatalf("Failed to age rows: %v", err)
	}
	mustUpsert(t, db, testFile("/library/keep.blend", modTime))

	tx, err := db.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch() failed: %v", err)
	}
	deleted, err := db.DeleteMissingFiles(tx, time.Now().Add(-time.Minute))
	if endErr := db.EndBatch(tx, err); endErr != nil {
		t.Fatalf("EndBatch() failed: %v", endErr)
	}
	if deleted != 1 {
		t.Errorf("DeleteMissingFiles() = %d, want 1", deleted)
	}

	if _, err := db.GetFileByPath(context.Background(), "/library/stale.blend"); !errors.Is(err, sql.ErrNoRows) {
		t.Error("stale.blend still present after prune")
	}
	if _, err := db.GetFileByPath(context.Background(), "/library/keep.blend"); err != nil {
		t.Errorf("keep.blend lost during prune: %v", err)
	}
}

func TestEndBatchRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)

	tx, err := db.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch() failed: %v", err)
	}
	if err := db.UpsertFile(tx, testFile("/library/rollback.blend", time.Now())); err != nil {
		t.Fatalf("UpsertFile() failed: %v", err)
	}

	opErr := errors.New("scan aborted")
	if err := db.EndBatch(tx, opErr); !errors.Is(err, opErr) {
		t.Fatalf("EndBatch() error = %v, want the operation error", err)
	}

	if _, err := db.GetFileByPath(context.Background(), "/library/rollback.blend"); !errors.Is(err, sql.ErrNoRows) {
		t.Error("rolled back row is visible")
	}
}

func TestRefreshStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	modTime := time.Now()

	withThumb := testFile("/library/a.blend", modTime)
	noThumb := testFile("/library/b.blend", modTime)
	noThumb.HasThumbnail = false
	compressed := testFile("/library/c.blend", modTime)
	compressed.Compressed = true
	compressed.HasThumbnail = false
	mustUpsert(t, db, withThumb, noThumb, compressed)

	if err := db.AddTagToFile(ctx, "/library/a.blend", "rigging"); err != nil {
		t.Fatalf("AddTagToFile() failed: %v", err)
	}

	stats, err := db.RefreshStats(ctx)
	if err != nil {
		t.Fatalf("RefreshStats() failed: %v", err)
	}

	if stats.TotalFiles != 3 {
		t.Errorf("TotalFiles = %d, want 3", stats.TotalFiles)
	}
	if stats.FilesWithThumbnail != 1 {
		t.Errorf("FilesWithThumbnail = %d, want 1", stats.FilesWithThumbnail)
	}
	if stats.CompressedFiles != 1 {
		t.Errorf("CompressedFiles = %d, want 1", stats.CompressedFiles)
	}
	if stats.TotalSize != 3*2048 {
		t.Errorf("TotalSize = %d, want %d", stats.TotalSize, 3*2048)
	}
	if stats.TotalTags != 1 {
		t.Errorf("TotalTags = %d, want 1", stats.TotalTags)
	}

	if got := db.GetStats(); got != stats {
		t.Errorf("GetStats() = %+v, want cached %+v", got, stats)
	}
}

func TestRefreshStatsKeepsScanBookkeeping(t *testing.T) {
	db := setupTestDB(t)

	scanned := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	db.UpdateStats(LibraryStats{LastScanned: scanned, ScanDuration: "1.5s"})

	stats, err := db.RefreshStats(context.Background())
	if err != nil {
		t.Fatalf("RefreshStats() failed: %v", err)
	}
	if !stats.LastScanned.Equal(scanned) || stats.ScanDuration != "1.5s" {
		t.Errorf("scan bookkeeping lost: %+v", stats)
	}
}

func TestMetadataLastScan(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	got, err := db.GetLastScan(ctx)
	if err != nil {
		t.Fatalf("GetLastScan() failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("GetLastScan() = %v before any scan, want zero", got)
	}

	want := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	if err := db.SetLastScan(ctx, want); err != nil {
		t.Fatalf("SetLastScan() failed: %v", err)
	}

	got, err = db.GetLastScan(ctx)
	if err != nil {
		t.Fatalf("GetLastScan() failed: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("GetLastScan() = %v, want %v", got, want)
	}

	// Clearing stores the sentinel empty value.
	if err := db.SetLastScan(ctx, time.Time{}); err != nil {
		t.Fatalf("SetLastScan(zero) failed: %v", err)
	}
	if got, _ := db.GetLastScan(ctx); !got.IsZero() {
		t.Errorf("GetLastScan() = %v after clear, want zero", got)
	}
}

func TestObserveQuery(t *testing.T) {
	// observeQuery only feeds Prometheus vectors; the test guards against
	// label mistakes that panic at first use.
	observeQuery("test_operation")(nil)
	observeQuery("test_operation")(errors.New("boom"))
}

func TestVacuum(t *testing.T) {
	db := setupTestDB(t)
	mustUpsert(t, db, testFile("/library/a.blend", time.Now()))

	if err := db.Vacuum(); err != nil {
		t.Errorf("Vacuum() failed: %v", err)
	}
}
