package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"blend-browser/internal/database"
)

// =============================================================================
// Search Tests
// =============================================================================

func TestSearchEmptyQuery(t *testing.T) {
	h, _ := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/search", http.NoBody)
	w := httptest.NewRecorder()

	h.Search(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var result database.SearchResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result.TotalItems != 0 {
		t.Errorf("expected 0 items for empty query, got %d", result.TotalItems)
	}
	if result.Items == nil {
		t.Error("expected empty array, got null")
	}
}

func TestSearch(t *testing.T) {
	h, libraryDir := setupHandlerTest(t)

	addLibraryFile(t, h, libraryDir, "scenes/kitchen_interior.blend", true)
	addLibraryFile(t, h, libraryDir, "props/barrel.blend", false)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=kitchen", http.NoBody)
	w := httptest.NewRecorder()

	h.Search(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var result database.SearchResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result.TotalItems != 1 {
		t.Fatalf("expected 1 item, got %d", result.TotalItems)
	}
	if result.Items[0].Name != "kitchen_interior.blend" {
		t.Errorf("expected kitchen_interior.blend, got %q", result.Items[0].Name)
	}
	if result.Query != "kitchen" {
		t.Errorf("expected query kitchen, got %q", result.Query)
	}
}

func TestSearchNoMatches(t *testing.T) {
	h, libraryDir := setupHandlerTest(t)

	addLibraryFile(t, h, libraryDir, "scene.blend", false)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=nonexistent", http.NoBody)
	w := httptest.NewRecorder()

	h.Search(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var result database.SearchResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result.TotalItems != 0 {
		t.Errorf("expected 0 items, got %d", result.TotalItems)
	}
}

func TestSearchPagination(t *testing.T) {
	h, libraryDir := setupHandlerTest(t)

	addLibraryFile(t, h, libraryDir, "tree_oak.blend", false)
	addLibraryFile(t, h, libraryDir, "tree_pine.blend", false)
	addLibraryFile(t, h, libraryDir, "tree_birch.blend", false)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=tree&page=2&pageSize=2", http.NoBody)
	w := httptest.NewRecorder()

	h.Search(w, req)

	var result database.SearchResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result.TotalItems != 3 {
		t.Errorf("expected 3 total items, got %d", result.TotalItems)
	}
	if result.Page != 2 {
		t.Errorf("expected page 2, got %d", result.Page)
	}
	if len(result.Items) != 1 {
		t.Errorf("expected 1 item on page 2, got %d", len(result.Items))
	}
}
