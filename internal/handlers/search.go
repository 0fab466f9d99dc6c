package handlers

import (
	"net/http"
	"strconv"

	"blend-browser/internal/database"
)

// Search runs a full-text query over file names and paths. Blank and
// too-short queries yield an empty result rather than an error so the
// UI can search as the user types.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := database.SearchOptions{
		Query:    q.Get("q"),
		Page:     1,
		PageSize: 50,
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		opts.Page = page
	}
	if size, err := strconv.Atoi(q.Get("pageSize")); err == nil && size > 0 {
		opts.PageSize = size
	}

	result, err := h.db.SearchFiles(r.Context(), opts)
	if err != nil {
		http.Error(w, "Search failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}
