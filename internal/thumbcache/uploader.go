package thumbcache

import "blend-browser/internal/blendfile"

// TextureUploader creates and destroys GPU-owned texture resources. The
// display layer supplies an implementation bound to its graphics context;
// every call happens on the single resource-owning goroutine.
type TextureUploader interface {
	// Upload creates a texture from a decoded thumbnail and returns its
	// handle. The thumbnail always has nonzero dimensions here.
	Upload(thumb *blendfile.Thumbnail) (uint32, error)

	// Release destroys a texture previously returned by Upload.
	Release(id uint32)
}

const placeholderSize = 128

// placeholderThumbnail builds the shared loading/missing placeholder: a
// gray checkerboard of 16-pixel squares.
func placeholderThumbnail() *blendfile.Thumbnail {
	pix := make([]byte, placeholderSize*placeholderSize*4)
	for y := 0; y < placeholderSize; y++ {
		for x := 0; x < placeholderSize; x++ {
			idx := (y*placeholderSize + x) * 4
			gray := byte(60)
			if ((x/16)+(y/16))%2 == 0 {
				gray = 80
			}
			pix[idx+0] = gray
			pix[idx+1] = gray
			pix[idx+2] = gray
			pix[idx+3] = 255
		}
	}
	return &blendfile.Thumbnail{Width: placeholderSize, Height: placeholderSize, Pix: pix}
}
