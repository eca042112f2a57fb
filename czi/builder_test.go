package czi

import (
	"encoding/binary"
	"testing"

	"github.com/mrjoshuak/go-czi/compression"
	"github.com/mrjoshuak/go-czi/internal/byteio"
)

// testTile describes one sub-block written by buildFile.
type testTile struct {
	pixelType   PixelType
	compression compression.Tag
	pyramid     PyramidType
	dims        []DimensionEntry
	payload     []byte
}

// tile returns an uncompressed Gray8 tile at (x, y) of logical size w x h
// stored downscaled by f, with every payload byte set to v.
func tile(x, y, w, h, f int, v byte, extra ...DimensionEntry) testTile {
	sw, sh := w/f, h/f
	payload := make([]byte, sw*sh)
	for i := range payload {
		payload[i] = v
	}
	dims := []DimensionEntry{
		{Dimension: DimX, Start: int32(x), Size: int32(w), StoredSize: int32(sw)},
		{Dimension: DimY, Start: int32(y), Size: int32(h), StoredSize: int32(sh)},
	}
	return testTile{
		pixelType:   Gray8,
		compression: compression.Uncompressed,
		dims:        append(dims, extra...),
		payload:     payload,
	}
}

func dim(name string, start int) DimensionEntry {
	return DimensionEntry{Dimension: name, Start: int32(start), Size: 1, StoredSize: 1}
}

func writeSegmentHeader(w *byteio.Writer, id string, size int64) {
	w.WriteFixedString(id, segmentIDSize)
	w.WriteInt64(size)
	w.WriteInt64(size)
}

func writeEntry(w *byteio.Writer, rec *Record) {
	w.WriteBytes([]byte("DV"))
	w.WriteInt32(int32(rec.PixelType))
	w.WriteInt64(rec.FilePosition)
	w.WriteInt32(rec.FilePart)
	w.WriteInt32(int32(rec.Compression))
	w.WriteBytes([]byte{byte(rec.PyramidType)})
	w.WriteZeros(5)
	w.WriteInt32(int32(len(rec.Dimensions)))
	for _, d := range rec.Dimensions {
		w.WriteFixedString(d.Dimension, 4)
		w.WriteInt32(d.Start)
		w.WriteInt32(d.Size)
		w.WriteFloat32(d.StartCoordinate)
		w.WriteInt32(d.StoredSize)
	}
}

// buildFile writes a single-part CZI file holding tiles in order, with an
// optional metadata segment.
func buildFile(t testing.TB, tiles []testTile, xml string) []byte {
	t.Helper()
	w := byteio.NewWriter(4096)

	writeSegmentHeader(w, SegmentFile, fileHeaderDataSize)
	w.WriteInt32(1)
	w.WriteInt32(0)
	w.WriteZeros(fileHeaderDataSize - 8)

	records := make([]Record, len(tiles))
	for i, tt := range tiles {
		pos := int64(w.Len())
		records[i] = Record{
			PixelType:    tt.pixelType,
			FilePosition: pos,
			Compression:  tt.compression,
			PyramidType:  tt.pyramid,
			Dimensions:   tt.dims,
		}
		header := subBlockHeaderSize(len(tt.dims))
		writeSegmentHeader(w, SegmentSubBlock, int64(header+len(tt.payload)))
		w.WriteInt32(0)
		w.WriteInt32(0)
		w.WriteInt64(int64(len(tt.payload)))
		start := w.Len()
		writeEntry(w, &records[i])
		w.WriteZeros(header - subBlockFixedSize - (w.Len() - start))
		w.WriteBytes(tt.payload)
		w.PadTo(segmentAlign)
	}

	dirPos := int64(w.Len())
	entries := byteio.NewWriter(1024)
	entries.WriteInt32(int32(len(records)))
	entries.WriteZeros(directoryHeaderSize - 4)
	for i := range records {
		writeEntry(entries, &records[i])
	}
	writeSegmentHeader(w, SegmentDirectory, int64(entries.Len()))
	w.WriteBytes(entries.Bytes())
	w.PadTo(segmentAlign)

	var metaPos int64
	if xml != "" {
		metaPos = int64(w.Len())
		writeSegmentHeader(w, SegmentMetadata, int64(metadataHeaderSize+len(xml)))
		w.WriteInt32(int32(len(xml)))
		w.WriteInt32(0)
		w.WriteZeros(metadataHeaderSize - 8)
		w.WriteBytes([]byte(xml))
		w.PadTo(segmentAlign)
	}

	data := w.Bytes()
	binary.LittleEndian.PutUint64(data[84:], uint64(dirPos))
	binary.LittleEndian.PutUint64(data[92:], uint64(metaPos))
	return data
}

// openTest opens an in-memory file built from tiles.
func openTest(t testing.TB, opts Options, tiles ...testTile) *Reader {
	t.Helper()
	r, err := OpenWith(BytesOpener(buildFile(t, tiles, "")), opts)
	if err != nil {
		t.Fatalf("OpenWith() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}
