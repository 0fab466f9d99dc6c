package blendfile

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// blendBuilder assembles synthetic blend files for tests.
type blendBuilder struct {
	buf   bytes.Buffer
	order binary.ByteOrder
	ptr64 bool
}

func newBlendBuilder(t *testing.T, order binary.ByteOrder, ptr64 bool, version string) *blendBuilder {
	t.Helper()
	if len(version) != 3 {
		t.Fatalf("version must be 3 digits, got %q", version)
	}

	b := &blendBuilder{order: order, ptr64: ptr64}
	b.buf.WriteString("BLENDER")
	if ptr64 {
		b.buf.WriteByte('-')
	} else {
		b.buf.WriteByte('_')
	}
	if order == binary.BigEndian {
		b.buf.WriteByte('V')
	} else {
		b.buf.WriteByte('v')
	}
	b.buf.WriteString(version)
	return b
}

func (b *blendBuilder) chunk(code string, body []byte) *blendBuilder {
	b.buf.WriteString(code)
	b.writeUint32(uint32(len(body)))
	if b.ptr64 {
		var addr [8]byte
		b.order.PutUint64(addr[:], 0xdeadbeef)
		b.buf.Write(addr[:])
	} else {
		b.writeUint32(0xdeadbeef)
	}
	b.writeUint32(0) // structure index
	b.writeUint32(1) // element count
	b.buf.Write(body)
	return b
}

func (b *blendBuilder) end() *blendBuilder {
	return b.chunk("ENDB", nil)
}

func (b *blendBuilder) writeUint32(v uint32) {
	var tmp [4]byte
	b.order.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
}

// thumbnailBody encodes a thumbnail chunk body. pix must be the raw
// bottom-up pixel data as stored on disk.
func (b *blendBuilder) thumbnailBody(width, height int, pix []byte) []byte {
	body := make([]byte, 8, 8+len(pix))
	b.order.PutUint32(body[0:4], uint32(width))
	b.order.PutUint32(body[4:8], uint32(height))
	return append(body, pix...)
}

func (b *blendBuilder) write(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b.buf.Bytes(), 0o644); err != nil {
		t.Fatalf("Failed to write synthetic blend file: %v", err)
	}
	return path
}

// gradientPixels returns top-down RGBA pixels where each byte encodes its
// own position, so any reordering is detectable.
func gradientPixels(width, height int) []byte {
	pix := make([]byte, width*height*4)
	for i := range pix {
		pix[i] = byte(i % 251)
	}
	return pix
}

// flipRows returns the pixel buffer with its rows in reverse order.
func flipRows(pix []byte, width, height int) []byte {
	out := make([]byte, len(pix))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		copy(out[y*rowSize:(y+1)*rowSize], pix[(height-1-y)*rowSize:(height-y)*rowSize])
	}
	return out
}

func TestParseQuickThumbnail(t *testing.T) {
	tests := []struct {
		name  string
		order binary.ByteOrder
		ptr64 bool
	}{
		{"little endian 64-bit", binary.LittleEndian, true},
		{"little endian 32-bit", binary.LittleEndian, false},
		{"big endian 64-bit", binary.BigEndian, true},
		{"big endian 32-bit", binary.BigEndian, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const width, height = 4, 3
			topDown := gradientPixels(width, height)
			stored := flipRows(topDown, width, height)

			b := newBlendBuilder(t, tt.order, tt.ptr64, "402")
			b.chunk("GLOB", make([]byte, 16))
			b.chunk("TEST", b.thumbnailBody(width, height, stored))
			b.end()
			path := b.write(t, t.TempDir(), "scene.blend")

			info, err := ParseQuick(path)
			if err != nil {
				t.Fatalf("ParseQuick() error: %v", err)
			}
			if info.Version != "4.02" {
				t.Errorf("Version = %q, want 4.02", info.Version)
			}
			if info.Compressed {
				t.Error("Compressed = true for plain file")
			}
			if info.Thumbnail == nil {
				t.Fatal("Thumbnail = nil, want decoded preview")
			}
			if info.Thumbnail.Width != width || info.Thumbnail.Height != height {
				t.Fatalf("Thumbnail dims = %dx%d, want %dx%d",
					info.Thumbnail.Width, info.Thumbnail.Height, width, height)
			}
			if !bytes.Equal(info.Thumbnail.Pix, topDown) {
				t.Error("Thumbnail pixels not vertically flipped back to top-down order")
			}
		})
	}
}

func TestParseQuickNoThumbnail(t *testing.T) {
	b := newBlendBuilder(t, binary.LittleEndian, true, "306")
	b.chunk("GLOB", make([]byte, 8))
	b.chunk("DATA", make([]byte, 64))
	b.end()
	path := b.write(t, t.TempDir(), "empty.blend")

	info, err := ParseQuick(path)
	if err != nil {
		t.Fatalf("ParseQuick() error: %v", err)
	}
	if info.Thumbnail != nil {
		t.Error("Thumbnail != nil for file without TEST chunk")
	}
	if info.Version != "3.06" {
		t.Errorf("Version = %q, want 3.06", info.Version)
	}
}

func TestParseQuickGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packed.blend")
	data := append([]byte{0x1f, 0x8b, 0x08}, make([]byte, 32)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write gzip stub: %v", err)
	}

	info, err := ParseQuick(path)
	if err != nil {
		t.Fatalf("ParseQuick() error for gzip file: %v", err)
	}
	if !info.Compressed {
		t.Error("Compressed = false for gzip file")
	}
	if info.Thumbnail != nil {
		t.Error("Thumbnail != nil for gzip file")
	}
}

func TestParseQuickBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.blend")
	if err := os.WriteFile(path, []byte("NOTABLENDFILEATALL"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := ParseQuick(path); err == nil {
		t.Fatal("ParseQuick() = nil error for bad magic")
	}
}

func TestParseQuickTruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.blend")
	if err := os.WriteFile(path, []byte("BLEND"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := ParseQuick(path); err == nil {
		t.Fatal("ParseQuick() = nil error for truncated header")
	}
}

func TestParseQuickMissingFile(t *testing.T) {
	if _, err := ParseQuick(filepath.Join(t.TempDir(), "gone.blend")); err == nil {
		t.Fatal("ParseQuick() = nil error for missing file")
	}
}

func TestParseQuickOversizedThumbnailSkipped(t *testing.T) {
	b := newBlendBuilder(t, binary.LittleEndian, true, "400")
	body := make([]byte, 8)
	binary.LittleEndian.PutUint32(body[0:4], 5000) // above the sanity bound
	binary.LittleEndian.PutUint32(body[4:8], 5000)
	b.chunk("TEST", body)
	b.end()
	path := b.write(t, t.TempDir(), "big.blend")

	info, err := ParseQuick(path)
	if err != nil {
		t.Fatalf("ParseQuick() error: %v, oversized thumbnail must only skip the preview", err)
	}
	if info.Thumbnail != nil {
		t.Error("Thumbnail != nil for out-of-range dimensions")
	}
}

func TestParseQuickTruncatedPixels(t *testing.T) {
	// Chunk claims 16x16 but carries only half the pixel bytes.
	b := newBlendBuilder(t, binary.LittleEndian, true, "400")
	pix := make([]byte, 16*16*4)
	body := b.thumbnailBody(16, 16, pix)
	body = body[:len(body)/2]
	b.chunk("TEST", body)
	path := b.write(t, t.TempDir(), "cut.blend")

	info, err := ParseQuick(path)
	if err != nil {
		t.Fatalf("ParseQuick() error: %v", err)
	}
	if info.Thumbnail != nil {
		t.Error("Thumbnail != nil for truncated pixel data")
	}
}

func TestParseQuickTruncatedChunkWalk(t *testing.T) {
	b := newBlendBuilder(t, binary.LittleEndian, true, "401")
	b.chunk("GLOB", make([]byte, 8))
	// No ENDB; stream just stops.
	path := b.write(t, t.TempDir(), "noend.blend")

	info, err := ParseQuick(path)
	if err != nil {
		t.Fatalf("ParseQuick() error: %v, truncated walk must not fail the parse", err)
	}
	if info.Version != "4.01" {
		t.Errorf("Version = %q, want 4.01", info.Version)
	}
}

func TestParseQuickStopsAtEnd(t *testing.T) {
	// A TEST chunk after ENDB must never be reached.
	b := newBlendBuilder(t, binary.LittleEndian, true, "400")
	b.end()
	b.chunk("TEST", b.thumbnailBody(2, 2, make([]byte, 16)))
	path := b.write(t, t.TempDir(), "late.blend")

	info, err := ParseQuick(path)
	if err != nil {
		t.Fatalf("ParseQuick() error: %v", err)
	}
	if info.Thumbnail != nil {
		t.Error("Thumbnail parsed from chunk after ENDB")
	}
}

func TestNegativeSentinel(t *testing.T) {
	if !Negative().IsNegative() {
		t.Error("Negative().IsNegative() = false")
	}
	var nilThumb *Thumbnail
	if !nilThumb.IsNegative() {
		t.Error("nil Thumbnail IsNegative() = false")
	}
	real := &Thumbnail{Width: 2, Height: 2, Pix: make([]byte, 16)}
	if real.IsNegative() {
		t.Error("real Thumbnail IsNegative() = true")
	}
}
