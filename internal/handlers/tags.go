package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"blend-browser/internal/database"

	"github.com/gorilla/mux"
)

// maxBatchTagPaths caps how many paths one batch lookup may carry; a
// listing page holds at most a few hundred entries.
const maxBatchTagPaths = 100

// TagRequest is the body shared by the tag mutation endpoints. Paths are
// library-relative, matching what the listing endpoints return.
type TagRequest struct {
	Path    string   `json:"path"`
	Tag     string   `json:"tag,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	NewName string   `json:"newName,omitempty"`
}

// BatchTagsRequest asks for the tags of several files in one round trip.
type BatchTagsRequest struct {
	Paths []string `json:"paths"`
}

// decodeTagRequest parses the body and enforces the given required
// fields, writing the 400 itself on failure.
func decodeTagRequest(w http.ResponseWriter, r *http.Request, needPath, needTag bool) (TagRequest, bool) {
	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return TagRequest{}, false
	}
	if needPath && req.Path == "" {
		http.Error(w, "Path is required", http.StatusBadRequest)
		return TagRequest{}, false
	}
	if needTag && req.Tag == "" {
		http.Error(w, "Path and tag are required", http.StatusBadRequest)
		return TagRequest{}, false
	}
	return req, true
}

// tagFromRoute extracts the {tag} route variable, writing the 400 itself
// when it is missing.
func tagFromRoute(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := mux.Vars(r)["tag"]
	if name == "" {
		http.Error(w, "Tag name is required", http.StatusBadRequest)
		return "", false
	}
	return name, true
}

// GetAllTags lists every tag with its usage count.
func (h *Handlers) GetAllTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.db.GetAllTags(r.Context())
	if err != nil {
		http.Error(w, "Failed to get tags", http.StatusInternalServerError)
		return
	}
	if tags == nil {
		tags = []database.Tag{}
	}
	writeJSON(w, tags)
}

// GetFileTags lists the tags on a single file, by ?path= query.
func (h *Handlers) GetFileTags(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "Path is required", http.StatusBadRequest)
		return
	}

	tags, err := h.db.GetFileTags(r.Context(), path)
	if err != nil {
		http.Error(w, "Failed to get tags", http.StatusInternalServerError)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, tags)
}

// GetBatchFileTags resolves tags for up to maxBatchTagPaths files at
// once so the listing UI does not issue one request per row. Untagged
// paths are omitted from the response map.
func (h *Handlers) GetBatchFileTags(w http.ResponseWriter, r *http.Request) {
	var req BatchTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Paths) == 0 {
		http.Error(w, "Paths array is required", http.StatusBadRequest)
		return
	}
	if len(req.Paths) > maxBatchTagPaths {
		req.Paths = req.Paths[:maxBatchTagPaths]
	}

	result := make(map[string][]string)
	for _, path := range req.Paths {
		if path == "" {
			continue
		}
		tags, err := h.db.GetFileTags(r.Context(), path)
		if err != nil {
			continue // one bad path must not sink the batch
		}
		if len(tags) > 0 {
			result[path] = tags
		}
	}
	writeJSON(w, result)
}

// AddTagToFile attaches one tag to one file.
func (h *Handlers) AddTagToFile(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTagRequest(w, r, true, true)
	if !ok {
		return
	}
	if err := h.db.AddTagToFile(r.Context(), req.Path, req.Tag); err != nil {
		http.Error(w, "Failed to add tag", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}

// RemoveTagFromFile detaches one tag from one file.
func (h *Handlers) RemoveTagFromFile(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTagRequest(w, r, true, true)
	if !ok {
		return
	}
	if err := h.db.RemoveTagFromFile(r.Context(), req.Path, req.Tag); err != nil {
		http.Error(w, "Failed to remove tag", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}

// SetFileTags replaces a file's tag list wholesale. An empty Tags slice
// clears the file.
func (h *Handlers) SetFileTags(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTagRequest(w, r, true, false)
	if !ok {
		return
	}
	if err := h.db.SetFileTags(r.Context(), req.Path, req.Tags); err != nil {
		http.Error(w, "Failed to set tags", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}

// GetFilesByTag pages through the files carrying the {tag} route tag.
func (h *Handlers) GetFilesByTag(w http.ResponseWriter, r *http.Request) {
	tagName, ok := tagFromRoute(w, r)
	if !ok {
		return
	}

	page, pageSize := 1, 50
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil && ps > 0 {
		pageSize = ps
	}

	result, err := h.db.GetFilesByTag(r.Context(), tagName, page, pageSize)
	if err != nil {
		http.Error(w, "Failed to get files", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// DeleteTag removes the {tag} route tag from every file.
func (h *Handlers) DeleteTag(w http.ResponseWriter, r *http.Request) {
	tagName, ok := tagFromRoute(w, r)
	if !ok {
		return
	}
	if err := h.db.DeleteTag(r.Context(), tagName); err != nil {
		http.Error(w, "Failed to delete tag", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}

// RenameTag gives the {tag} route tag the name from the request body.
func (h *Handlers) RenameTag(w http.ResponseWriter, r *http.Request) {
	tagName, ok := tagFromRoute(w, r)
	if !ok {
		return
	}

	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.NewName == "" {
		http.Error(w, "Tag name and new name are required", http.StatusBadRequest)
		return
	}

	if err := h.db.RenameTag(r.Context(), tagName, req.NewName); err != nil {
		http.Error(w, "Failed to rename tag", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}
