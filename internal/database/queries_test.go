package database

import (
	"context"
	"testing"
	"time"
)

func boolPtr(v bool) *bool { return &v }

func seedLibrary(t *testing.T, db *Database) {
	t.Helper()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	character := testFile("/library/characters/ellie.blend", base.Add(2*time.Hour))
	character.Size = 900

	archive := testFile("/library/archive/old_city.blend", base)
	archive.Size = 5000
	archive.Compressed = true
	archive.HasThumbnail = false

	prop := testFile("/library/props/barrel.blend", base.Add(time.Hour))
	prop.Size = 100

	mustUpsert(t, db, character, archive, prop)
}

func TestListFilesSortedByName(t *testing.T) {
	db := setupTestDB(t)
	seedLibrary(t, db)

	listing, err := db.ListFiles(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}

	if listing.TotalItems != 3 {
		t.Fatalf("TotalItems = %d, want 3", listing.TotalItems)
	}
	want := []string{"barrel.blend", "ellie.blend", "old_city.blend"}
	for i, name := range want {
		if listing.Items[i].Name != name {
			t.Errorf("Items[%d].Name = %q, want %q", i, listing.Items[i].Name, name)
		}
	}
}

func TestListFilesSortedBySizeDesc(t *testing.T) {
	db := setupTestDB(t)
	seedLibrary(t, db)

	listing, err := db.ListFiles(context.Background(), ListOptions{
		SortField: SortBySize,
		SortOrder: SortDesc,
	})
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}

	want := []string{"old_city.blend", "ellie.blend", "barrel.blend"}
	for i, name := range want {
		if listing.Items[i].Name != name {
			t.Errorf("Items[%d].Name = %q, want %q", i, listing.Items[i].Name, name)
		}
	}
}

func TestListFilesByParent(t *testing.T) {
	db := setupTestDB(t)
	seedLibrary(t, db)

	listing, err := db.ListFiles(context.Background(), ListOptions{
		ParentPath: "/library/props",
	})
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}

	if listing.TotalItems != 1 || listing.Items[0].Name != "barrel.blend" {
		t.Errorf("listing = %+v, want only barrel.blend", listing.Items)
	}
	if listing.Path != "/library/props" {
		t.Errorf("Path = %q, want /library/props", listing.Path)
	}
}

func TestListFilesFilters(t *testing.T) {
	db := setupTestDB(t)
	seedLibrary(t, db)
	ctx := context.Background()

	withThumbs, err := db.ListFiles(ctx, ListOptions{HasThumbnail: boolPtr(true)})
	if err != nil {
		t.Fatalf("ListFiles(has_thumbnail) failed: %v", err)
	}
	if withThumbs.TotalItems != 2 {
		t.Errorf("has_thumbnail filter: TotalItems = %d, want 2", withThumbs.TotalItems)
	}

	compressed, err := db.ListFiles(ctx, ListOptions{Compressed: boolPtr(true)})
	if err != nil {
		t.Fatalf("ListFiles(compressed) failed: %v", err)
	}
	if compressed.TotalItems != 1 || compressed.Items[0].Name != "old_city.blend" {
		t.Errorf("compressed filter returned %+v, want only old_city.blend", compressed.Items)
	}
}

func TestListFilesPagination(t *testing.T) {
	db := setupTestDB(t)
	seedLibrary(t, db)

	page1, err := db.ListFiles(context.Background(), ListOptions{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("ListFiles(page 1) failed: %v", err)
	}
	if len(page1.Items) != 2 || page1.TotalPages != 2 {
		t.Fatalf("page 1: items=%d totalPages=%d, want 2 and 2", len(page1.Items), page1.TotalPages)
	}

	page2, err := db.ListFiles(context.Background(), ListOptions{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("ListFiles(page 2) failed: %v", err)
	}
	if len(page2.Items) != 1 {
		t.Fatalf("page 2: items=%d, want 1", len(page2.Items))
	}
	if page1.Items[0].Path == page2.Items[0].Path {
		t.Error("pages overlap")
	}
}

func TestListFilesIncludesTags(t *testing.T) {
	db := setupTestDB(t)
	seedLibrary(t, db)
	ctx := context.Background()

	if err := db.AddTagToFile(ctx, "/library/props/barrel.blend", "props"); err != nil {
		t.Fatalf("AddTagToFile() failed: %v", err)
	}

	listing, err := db.ListFiles(ctx, ListOptions{ParentPath: "/library/props"})
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}
	if len(listing.Items[0].Tags) != 1 || listing.Items[0].Tags[0] != "props" {
		t.Errorf("Tags = %v, want [props]", listing.Items[0].Tags)
	}
}

func TestSearchFiles(t *testing.T) {
	db := setupTestDB(t)
	seedLibrary(t, db)

	result, err := db.SearchFiles(context.Background(), SearchOptions{Query: "ellie"})
	if err != nil {
		t.Fatalf("SearchFiles() failed: %v", err)
	}
	if result.TotalItems != 1 || result.Items[0].Name != "ellie.blend" {
		t.Errorf("search returned %+v, want only ellie.blend", result.Items)
	}
}

func TestSearchFilesMatchesPath(t *testing.T) {
	db := setupTestDB(t)
	seedLibrary(t, db)

	result, err := db.SearchFiles(context.Background(), SearchOptions{Query: "archive"})
	if err != nil {
		t.Fatalf("SearchFiles() failed: %v", err)
	}
	if result.TotalItems != 1 || result.Items[0].Name != "old_city.blend" {
		t.Errorf("path search returned %+v, want only old_city.blend", result.Items)
	}
}

func TestSearchFilesReflectsUpdates(t *testing.T) {
	db := setupTestDB(t)
	seedLibrary(t, db)
	ctx := context.Background()

	tx, err := db.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch() failed: %v", err)
	}
	deleted, err := db.DeleteMissingFiles(tx, time.Now().Add(time.Minute))
	if endErr := db.EndBatch(tx, err); endErr != nil {
		t.Fatalf("EndBatch() failed: %v", endErr)
	}
	if deleted != 3 {
		t.Fatalf("DeleteMissingFiles() = %d, want 3", deleted)
	}

	result, err := db.SearchFiles(ctx, SearchOptions{Query: "ellie"})
	if err != nil {
		t.Fatalf("SearchFiles() failed: %v", err)
	}
	if result.TotalItems != 0 {
		t.Errorf("search still finds deleted rows: %+v", result.Items)
	}
}

func TestSearchFilesShortQuery(t *testing.T) {
	db := setupTestDB(t)
	seedLibrary(t, db)

	result, err := db.SearchFiles(context.Background(), SearchOptions{Query: "el"})
	if err != nil {
		t.Fatalf("SearchFiles() failed: %v", err)
	}
	if result.TotalItems != 0 || len(result.Items) != 0 {
		t.Errorf("two character query returned results: %+v", result.Items)
	}
}
