package handlers

import (
	"database/sql"
	"errors"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"blend-browser/internal/database"
	"blend-browser/internal/logging"
	"blend-browser/internal/thumbcache"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"
)

func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logging.Debug("ListFiles called: %s", r.URL.String())

	opts := database.ListOptions{
		ParentPath: r.URL.Query().Get("path"),
		SortField:  database.SortField(r.URL.Query().Get("sort")),
		SortOrder:  database.SortOrder(r.URL.Query().Get("order")),
		Page:       1,
		PageSize:   100,
	}

	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 0 {
		opts.Page = page
	}
	if pageSize, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil && pageSize > 0 {
		opts.PageSize = pageSize
	}

	if hasThumb := r.URL.Query().Get("hasThumbnail"); hasThumb != "" {
		if parsed, err := strconv.ParseBool(hasThumb); err == nil {
			opts.HasThumbnail = &parsed
		}
	}
	if compressed := r.URL.Query().Get("compressed"); compressed != "" {
		if parsed, err := strconv.ParseBool(compressed); err == nil {
			opts.Compressed = &parsed
		}
	}

	if opts.SortField == "" {
		opts.SortField = database.SortByName
	}
	if opts.SortOrder == "" {
		opts.SortOrder = database.SortAsc
	}

	listing, err := h.db.ListFiles(r.Context(), opts)
	if err != nil {
		logging.Error("ListFiles database error: %v", err)
		http.Error(w, "Failed to list files", http.StatusInternalServerError)
		return
	}

	logging.Debug("ListFiles completed in %v, found %d items", time.Since(start), len(listing.Items))

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, listing)
}

// GetFile returns the database record for a single blend file.
func (h *Handlers) GetFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	filePath := vars["path"]

	if filePath == "" {
		http.Error(w, "Path is required", http.StatusBadRequest)
		return
	}

	file, err := h.db.GetFileByPath(r.Context(), filePath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		logging.Error("GetFile database error for %s: %v", filePath, err)
		http.Error(w, "Failed to get file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, file)
}

// GetThumbnail serves the embedded preview of a blend file as PNG. The path
// is library-relative; resolution goes through the shared disk-backed cache.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	filePath := vars["path"]

	logging.Debug("Thumbnail requested: %s", filePath)

	if filePath == "" {
		http.Error(w, "Path is required", http.StatusBadRequest)
		return
	}

	fullPath := filepath.Join(h.libraryDir, filePath)

	// Security check
	absPath, err := filepath.Abs(fullPath)
	if err != nil || !isSubPath(h.libraryDir, absPath) {
		logging.Warn("Thumbnail: path outside library dir: %s", filePath)
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	if !h.thumbnailsEnabled {
		http.Error(w, "Thumbnails disabled", http.StatusServiceUnavailable)
		return
	}

	if info, statErr := os.Stat(fullPath); statErr == nil && info.IsDir() {
		http.Error(w, "Cannot serve thumbnail for directory", http.StatusBadRequest)
		return
	}

	thumb := thumbcache.Resolve(h.store, absPath)
	if thumb.IsNegative() {
		http.Error(w, "No thumbnail available", http.StatusNotFound)
		return
	}

	img := &image.NRGBA{
		Pix:    thumb.Pix,
		Stride: thumb.Width * 4,
		Rect:   image.Rect(0, 0, thumb.Width, thumb.Height),
	}

	// Optional downscale for grid views
	if size, sizeErr := strconv.Atoi(r.URL.Query().Get("size")); sizeErr == nil && size > 0 && size < thumb.Width {
		img = imaging.Fit(img, size, size, imaging.Lanczos)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		logging.Error("Thumbnail: failed to encode PNG for %s: %v", filePath, err)
	}
}

func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	stats := h.db.GetStats()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, stats)
}

func (h *Handlers) TriggerRescan(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.scanner.IsScanning() {
		writeJSON(w, map[string]string{
			"status":  "already_running",
			"message": "Scan is already in progress",
		})
		return
	}

	h.scanner.TriggerScan()

	writeJSON(w, map[string]string{
		"status":  "started",
		"message": "Library rescan started",
	})
}

func isSubPath(parent, child string) bool {
	parent, _ = filepath.Abs(parent)
	child, _ = filepath.Abs(child)
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
