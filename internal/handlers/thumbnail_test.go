package handlers

import (
	"bytes"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"blend-browser/internal/startup"

	"github.com/gorilla/mux"
)

// =============================================================================
// GetThumbnail Tests
// =============================================================================

func thumbnailRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/thumbnail/"+path, http.NoBody)
	return mux.SetURLVars(req, map[string]string{"path": path})
}

func TestGetThumbnail(t *testing.T) {
	h, libraryDir := setupHandlerTest(t)

	writeTestBlend(t, filepath.Join(libraryDir, "scene.blend"), true)

	w := httptest.NewRecorder()
	h.GetThumbnail(w, thumbnailRequest("scene.blend"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "image/png" {
		t.Errorf("expected Content-Type image/png, got %q", contentType)
	}

	cacheControl := w.Header().Get("Cache-Control")
	if cacheControl == "" {
		t.Error("expected Cache-Control header to be set")
	}

	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("response is not valid PNG: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 2 || bounds.Dy() != 2 {
		t.Errorf("expected 2x2 image, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestGetThumbnailNoPreview(t *testing.T) {
	h, libraryDir := setupHandlerTest(t)

	writeTestBlend(t, filepath.Join(libraryDir, "empty.blend"), false)

	w := httptest.NewRecorder()
	h.GetThumbnail(w, thumbnailRequest("empty.blend"))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestGetThumbnailCompressedFile(t *testing.T) {
	h, libraryDir := setupHandlerTest(t)

	writeTestCompressedBlend(t, filepath.Join(libraryDir, "archive.blend"))

	w := httptest.NewRecorder()
	h.GetThumbnail(w, thumbnailRequest("archive.blend"))

	// Compressed files carry no readable preview.
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestGetThumbnailMissingFile(t *testing.T) {
	h, _ := setupHandlerTest(t)

	w := httptest.NewRecorder()
	h.GetThumbnail(w, thumbnailRequest("does-not-exist.blend"))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestGetThumbnailPathTraversal(t *testing.T) {
	h, _ := setupHandlerTest(t)

	w := httptest.NewRecorder()
	h.GetThumbnail(w, thumbnailRequest("../../etc/passwd"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestGetThumbnailEmptyPath(t *testing.T) {
	h, _ := setupHandlerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/thumbnail/", http.NoBody)
	w := httptest.NewRecorder()

	h.GetThumbnail(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestGetThumbnailDirectory(t *testing.T) {
	h, libraryDir := setupHandlerTest(t)

	if err := os.MkdirAll(filepath.Join(libraryDir, "props"), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}

	w := httptest.NewRecorder()
	h.GetThumbnail(w, thumbnailRequest("props"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestGetThumbnailDisabled(t *testing.T) {
	h, libraryDir := setupHandlerTest(t)

	writeTestBlend(t, filepath.Join(libraryDir, "scene.blend"), true)

	config := &startup.Config{
		LibraryDir:        libraryDir,
		ThumbnailsEnabled: false,
	}
	disabled := New(h.db, h.scanner, h.store, config)

	w := httptest.NewRecorder()
	disabled.GetThumbnail(w, thumbnailRequest("scene.blend"))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestGetThumbnailResize(t *testing.T) {
	h, libraryDir := setupHandlerTest(t)

	// 4x4 preview so a 2px resize request actually downscales.
	writeTestBlendSized(t, filepath.Join(libraryDir, "big.blend"), 4, 4)

	req := httptest.NewRequest(http.MethodGet, "/api/thumbnail/big.blend?size=2", http.NoBody)
	req = mux.SetURLVars(req, map[string]string{"path": "big.blend"})
	w := httptest.NewRecorder()

	h.GetThumbnail(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("response is not valid PNG: %v", err)
	}

	if img.Bounds().Dx() != 2 {
		t.Errorf("expected width 2 after resize, got %d", img.Bounds().Dx())
	}
}

func TestGetThumbnailServedFromStore(t *testing.T) {
	h, libraryDir := setupHandlerTest(t)

	path := filepath.Join(libraryDir, "scene.blend")
	writeTestBlend(t, path, true)

	// First request parses the file and persists the result.
	w := httptest.NewRecorder()
	h.GetThumbnail(w, thumbnailRequest("scene.blend"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	if _, ok := h.store.Load(path); !ok {
		t.Fatal("expected thumbnail to be persisted after first request")
	}

	// Second request must still succeed even if the blend file vanishes,
	// because the stored record satisfies it.
	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove blend file: %v", err)
	}

	w = httptest.NewRecorder()
	h.GetThumbnail(w, thumbnailRequest("scene.blend"))
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 from store, got %d", w.Code)
	}
}
