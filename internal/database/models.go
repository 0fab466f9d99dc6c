package database

import "time"

// BlendFile is one scanned library entry.
type BlendFile struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	ParentPath   string    `json:"parentPath"`
	Size         int64     `json:"size"`
	ModTime      time.Time `json:"modTime"`
	Version      string    `json:"version,omitempty"`
	Compressed   bool      `json:"compressed"`
	HasThumbnail bool      `json:"hasThumbnail"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
}

// Tag is a user-assigned label. ItemCount is populated only by listing
// queries.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	ItemCount int       `json:"itemCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// FileListing is one page of library entries.
type FileListing struct {
	Path       string      `json:"path"`
	Items      []BlendFile `json:"items"`
	TotalItems int         `json:"totalItems"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// SearchResult is one page of full-text matches for Query.
type SearchResult struct {
	Items      []BlendFile `json:"items"`
	Query      string      `json:"query"`
	TotalItems int         `json:"totalItems"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// LibraryStats summarizes the scanned library. It is refreshed by the
// scanner after each run and served from a cache in between.
type LibraryStats struct {
	TotalFiles         int       `json:"totalFiles"`
	FilesWithThumbnail int       `json:"filesWithThumbnail"`
	CompressedFiles    int       `json:"compressedFiles"`
	TotalSize          int64     `json:"totalSize"`
	TotalTags          int       `json:"totalTags"`
	LastScanned        time.Time `json:"lastScanned"`
	ScanDuration       string    `json:"scanDuration"`
}
