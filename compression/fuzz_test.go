package compression

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

// FuzzDecode feeds arbitrary payloads to every supported tag. Decode must
// return an error or exactly f.Size() bytes, and never panic.
func FuzzDecode(f *testing.F) {
	f.Add(int32(Uncompressed), []byte{1, 2, 3, 4})
	f.Add(int32(JPEG), []byte{0xff, 0xd8, 0xff, 0xd9})
	f.Add(int32(LZW), []byte{0x80, 0x00, 0x00})
	f.Add(int32(Zstd0), []byte{0x28, 0xb5, 0x2f, 0xfd})
	f.Add(int32(Zstd1), []byte{3, 1, 1, 0x28, 0xb5, 0x2f, 0xfd})
	f.Add(int32(Camera504), []byte{0x12, 0x34, 0x56})
	f.Add(int32(Camera104), bytes.Repeat([]byte{0xff}, 64))

	d, err := NewDispatcher(nil, zerolog.Nop())
	if err != nil {
		f.Fatal(err)
	}
	pf := PixelFormat{Width: 4, Height: 4, BytesPerSample: 2, Samples: 1}

	f.Fuzz(func(t *testing.T, tag int32, data []byte) {
		out, err := d.Decode(Tag(tag), data, pf)
		if err == nil && len(out) != pf.Size() {
			t.Errorf("tag %d: decoded %d bytes, want %d", tag, len(out), pf.Size())
		}
	})
}

// FuzzParseZstd1Header tests the zstd1 header parser with arbitrary data.
func FuzzParseZstd1Header(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{1})
	f.Add([]byte{3, 1, 1})
	f.Add([]byte{3, 1, 0})
	f.Add([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01})

	f.Fuzz(func(t *testing.T, data []byte) {
		h, err := ParseZstd1Header(data)
		if err == nil && h.Size > len(data) {
			t.Errorf("header size %d exceeds input %d", h.Size, len(data))
		}
	})
}

// FuzzLZWDecompress tests LZW decompression with arbitrary data.
func FuzzLZWDecompress(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x80, 0x10, 0x84, 0x00})
	f.Add(bytes.Repeat([]byte{0xff}, 100))

	f.Fuzz(func(t *testing.T, data []byte) {
		out, err := LZWDecompress(data, 4096)
		if err == nil && len(out) > 4096 {
			t.Errorf("decoded %d bytes, limit 4096", len(out))
		}
	})
}
