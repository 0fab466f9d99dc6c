package blendfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"blend-browser/internal/filesystem"
	"blend-browser/internal/logging"
	"blend-browser/internal/metrics"
)

const (
	// maxThumbnailDim bounds embedded preview dimensions; anything outside
	// 1..maxThumbnailDim is treated as garbage and skipped.
	maxThumbnailDim = 1024

	chunkThumbnail = "TEST"
	chunkEnd       = "ENDB"
)

var (
	fileMagic = []byte("BLENDER")
	gzipMagic = []byte{0x1f, 0x8b}
)

// ErrInvalidHeader is returned when a file is neither a blend file nor a
// gzip-compressed one.
var ErrInvalidHeader = errors.New("invalid blend file header")

// fileHeader is the decoded 12-byte file header.
type fileHeader struct {
	pointer64 bool
	order     binary.ByteOrder
	version   string
}

// chunkHeader describes one self-describing chunk. The old-address field is
// 4 or 8 bytes wide depending on the pointer-width flag in the file header.
type chunkHeader struct {
	code       [4]byte
	size       int32
	oldAddress uint64
	sdnaIndex  int32
	count      int32
}

func readHeader(r io.Reader) (*fileHeader, error) {
	var buf [12]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if !bytes.Equal(buf[:7], fileMagic) {
		return nil, ErrInvalidHeader
	}

	hdr := &fileHeader{
		// '_' marks 32-bit old-address fields, '-' marks 64-bit.
		pointer64: buf[7] == '-',
		version:   string(buf[9]) + "." + string(buf[10:12]),
	}
	// 'v' is little-endian, 'V' big-endian.
	if buf[8] == 'V' {
		hdr.order = binary.BigEndian
	} else {
		hdr.order = binary.LittleEndian
	}
	return hdr, nil
}

func readChunkHeader(r io.Reader, hdr *fileHeader) (*chunkHeader, error) {
	addrLen := 4
	if hdr.pointer64 {
		addrLen = 8
	}

	buf := make([]byte, 4+4+addrLen+4+4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	ch := &chunkHeader{}
	copy(ch.code[:], buf[:4])
	ch.size = int32(hdr.order.Uint32(buf[4:8]))
	if hdr.pointer64 {
		ch.oldAddress = hdr.order.Uint64(buf[8:16])
	} else {
		ch.oldAddress = uint64(hdr.order.Uint32(buf[8:12]))
	}
	ch.sdnaIndex = int32(hdr.order.Uint32(buf[4+4+addrLen : 8+4+addrLen]))
	ch.count = int32(hdr.order.Uint32(buf[8+4+addrLen:]))
	return ch, nil
}

// extractThumbnail decodes the body of a thumbnail chunk. Failures here are
// local: a nil return means the thumbnail is skipped, not that the parse
// failed.
func extractThumbnail(r io.Reader, ch *chunkHeader, order binary.ByteOrder) *Thumbnail {
	if ch.size < 8 {
		return nil
	}

	var dims [8]byte
	if _, err := io.ReadFull(r, dims[:]); err != nil {
		return nil
	}
	width := int(int32(order.Uint32(dims[0:4])))
	height := int(int32(order.Uint32(dims[4:8])))

	if width <= 0 || width > maxThumbnailDim || height <= 0 || height > maxThumbnailDim {
		logging.Debug("Thumbnail dimensions %dx%d out of range, skipping", width, height)
		return nil
	}

	pixLen := width * height * 4
	if int(ch.size) < 8+pixLen {
		return nil
	}

	pix := make([]byte, pixLen)
	if _, err := io.ReadFull(r, pix); err != nil {
		return nil
	}

	// The container stores previews bottom-up; flip to a top-down image.
	flipped := imaging.FlipV(&image.NRGBA{
		Pix:    pix,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	})

	return &Thumbnail{Width: width, Height: height, Pix: flipped.Pix}
}

// ParseQuick opens a blend file, decodes its header and walks chunks until
// the embedded thumbnail or the end marker is found. It never reads past
// what it needs for the preview.
//
// Gzip-compressed blend files are reported with Compressed set and no
// thumbnail; that is not an error. A file that is neither a blend file nor
// gzip fails the parse. A truncated chunk stream yields whatever was
// decoded before the truncation.
func ParseQuick(path string) (*FileInfo, error) {
	start := time.Now()

	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		metrics.ParserParsesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info := &FileInfo{Path: path, Name: filepath.Base(path)}
	if st, statErr := f.Stat(); statErr == nil {
		info.Size = st.Size()
		info.ModTime = st.ModTime()
	}

	hdr, err := readHeader(f)
	if err != nil {
		if isGzip(f) {
			info.Compressed = true
			metrics.ParserParsesTotal.WithLabelValues("compressed").Inc()
			metrics.ParserParseDuration.Observe(time.Since(start).Seconds())
			return info, nil
		}
		metrics.ParserParsesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	info.Version = hdr.version

	for {
		ch, chErr := readChunkHeader(f, hdr)
		if chErr != nil {
			// Truncated chunk stream: keep what we have.
			break
		}

		code := string(ch.code[:])
		if code == chunkEnd {
			break
		}
		if code == chunkThumbnail {
			info.Thumbnail = extractThumbnail(f, ch, hdr.order)
			break
		}

		if ch.size < 0 {
			break
		}
		if _, seekErr := f.Seek(int64(ch.size), io.SeekCurrent); seekErr != nil {
			break
		}
	}

	outcome := "no_thumbnail"
	if info.Thumbnail != nil {
		outcome = "thumbnail"
	}
	metrics.ParserParsesTotal.WithLabelValues(outcome).Inc()
	metrics.ParserParseDuration.Observe(time.Since(start).Seconds())

	elapsed := time.Since(start)
	if elapsed > 100*time.Millisecond {
		logging.Debug("Slow quick parse: %s took %v", info.Name, elapsed)
	}

	return info, nil
}

func isGzip(f *os.File) bool {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false
	}
	var magic [2]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false
	}
	return bytes.Equal(magic[:], gzipMagic)
}
