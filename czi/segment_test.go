package czi

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/mrjoshuak/go-czi/compression"
)

func TestReadFileHeaderMagic(t *testing.T) {
	data := buildFile(t, []testTile{tile(0, 0, 8, 8, 1, 1)}, "")
	copy(data, "ZISRAWFILX")
	if _, err := ReadFileHeader(BytesPart(data)); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("ReadFileHeader() error = %v, want ErrInvalidMagic", err)
	}
	if _, err := ReadFileHeader(BytesPart(data[:40])); err == nil {
		t.Error("ReadFileHeader(truncated) succeeded")
	}
}

func TestReadDirectoryEntries(t *testing.T) {
	tt := tile(32, 64, 512, 256, 2, 1, dim(DimC, 3), dim(DimS, 1))
	tt.pixelType = Gray16
	tt.compression = compression.Zstd1
	data := buildFile(t, []testTile{tt}, "")

	records, err := ReadDirectory(BytesPart(data), int64(len(data)), directoryPosition(t, data))
	if err != nil {
		t.Fatalf("ReadDirectory() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.PixelType != Gray16 || rec.Compression != compression.Zstd1 {
		t.Errorf("record = %s/%s", rec.PixelType, rec.Compression)
	}
	x := rec.Dimension(DimX)
	if x.Start != 32 || x.Size != 512 || x.StoredSize != 256 {
		t.Errorf("X = %+v", x)
	}
	if c := rec.Dimension(DimC); c.Start != 3 {
		t.Errorf("C start = %d, want 3", c.Start)
	}
	if z := rec.Dimension(DimZ); z.Start != 0 || z.Size != 1 {
		t.Errorf("missing Z = %+v, want unit placeholder", z)
	}
}

func TestReadDirectoryErrors(t *testing.T) {
	data := buildFile(t, []testTile{tile(0, 0, 8, 8, 1, 1)}, "")
	dirPos := directoryPosition(t, data)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"wrong segment", func(d []byte) []byte {
			copy(d[dirPos:], "ZISRAWSUBBLOCK\x00\x00")
			return d
		}, ErrInvalidSegment},
		{"DE schema", func(d []byte) []byte {
			copy(d[dirPos+segmentHeaderSize+directoryHeaderSize:], "DE")
			return d
		}, ErrUnsupportedSchema},
		{"entry count", func(d []byte) []byte {
			binary.LittleEndian.PutUint32(d[dirPos+segmentHeaderSize:], 1<<20)
			return d
		}, ErrInvalidSegmentSize},
		{"truncated", func(d []byte) []byte {
			return d[:dirPos+segmentHeaderSize+64]
		}, ErrInvalidSegmentSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.mutate(bytes.Clone(data))
			_, err := ReadDirectory(BytesPart(d), int64(len(d)), dirPos)
			if !errors.Is(err, tt.want) {
				t.Errorf("ReadDirectory() error = %v, want %v", err, tt.want)
			}
			var fe *FormatError
			if !errors.As(err, &fe) || fe.Segment != SegmentDirectory {
				t.Errorf("error %v is not a directory FormatError", err)
			}
		})
	}
}

func TestPayloadSpan(t *testing.T) {
	tt := tile(0, 0, 4, 4, 1, 7)
	data := buildFile(t, []testTile{tt}, "")
	off := int64(segmentHeaderSize + fileHeaderDataSize)

	start, size, err := payloadSpan(BytesPart(data), off, len(tt.dims))
	if err != nil {
		t.Fatalf("payloadSpan() error = %v", err)
	}
	if size != 16 || !bytes.Equal(data[start:start+size], tt.payload) {
		t.Errorf("payload span [%d, +%d) does not hold the tile", start, size)
	}
	if _, _, err := payloadSpan(BytesPart(data), 0, len(tt.dims)); !errors.Is(err, ErrInvalidSubBlock) {
		t.Errorf("payloadSpan(file header) error = %v, want ErrInvalidSubBlock", err)
	}
}

func TestCorruptSubBlockHeaderReadsZero(t *testing.T) {
	data := buildFile(t, []testTile{tile(0, 0, 4, 4, 1, 7)}, "")
	off := segmentHeaderSize + fileHeaderDataSize
	copy(data[off:], "DELETED\x00\x00\x00\x00\x00\x00\x00\x00\x00")

	r, err := OpenWith(BytesOpener(data), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, err := r.ReadPlane(context.Background(), 0, 0, DimensionKey{})
	if err != nil {
		t.Fatalf("ReadPlane() error = %v", err)
	}
	if !bytes.Equal(got, make([]byte, 16)) {
		t.Errorf("unreadable tile = %v, want zeros", got)
	}
}

func TestSubBlockHeaderSize(t *testing.T) {
	tests := []struct{ dims, want int }{
		{2, 256},
		{10, 256},
		{11, 268},
	}
	for _, tt := range tests {
		if got := subBlockHeaderSize(tt.dims); got != tt.want {
			t.Errorf("subBlockHeaderSize(%d) = %d, want %d", tt.dims, got, tt.want)
		}
	}
}
