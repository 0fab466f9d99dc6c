package blendfile

import "time"

// Thumbnail is a preview image extracted from a blend file. Pixels are
// top-down RGBA, 4 bytes per pixel, immutable once constructed.
//
// A zero-sized Thumbnail (Width == Height == 0, nil Pix) is the explicit
// "verified absent" sentinel used by the caching layers: the file was
// checked and has no usable preview.
type Thumbnail struct {
	Width  int
	Height int
	Pix    []byte
}

// Negative returns the sentinel thumbnail meaning "no embedded preview".
func Negative() *Thumbnail {
	return &Thumbnail{}
}

// IsNegative reports whether the thumbnail is the verified-absent sentinel.
func (t *Thumbnail) IsNegative() bool {
	return t == nil || t.Width == 0 || t.Height == 0
}

// FileInfo describes a parsed blend file.
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time

	// Version is the Blender version string from the header, e.g. "4.02".
	Version string

	// Compressed is set for gzip-compressed blend files, which carry no
	// extractable thumbnail.
	Compressed bool

	// Thumbnail is the embedded preview, nil when the file has none.
	Thumbnail *Thumbnail
}
