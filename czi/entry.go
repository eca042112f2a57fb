package czi

import (
	"fmt"
	"math"

	"github.com/mrjoshuak/go-czi/compression"
)

// Dimension names used in directory entries.
const (
	DimX = "X"
	DimY = "Y"
	DimC = "C"
	DimZ = "Z"
	DimT = "T"
	DimR = "R" // rotation
	DimI = "I" // illumination
	DimH = "H" // phase
	DimV = "V" // view
	DimB = "B" // block (legacy)
	DimS = "S" // scene
	DimM = "M" // mosaic tile
)

// DimensionEntry is one dimension of a directory entry.
type DimensionEntry struct {
	Dimension       string
	Start           int32
	Size            int32
	StartCoordinate float32
	StoredSize      int32
}

// PyramidType is the pyramid role recorded for a sub-block.
type PyramidType byte

const (
	PyramidNone   PyramidType = 0
	// PyramidSingle marks a downscaled tile made from one full-resolution
	// tile. Files holding such tiles are not prestitched.
	PyramidSingle PyramidType = 1
	PyramidMulti  PyramidType = 2
)

// Record is a raw sub-block directory entry.
type Record struct {
	PixelType    PixelType
	FilePosition int64
	FilePart     int32
	Compression  compression.Tag
	PyramidType  PyramidType
	Dimensions   []DimensionEntry
}

// Dimension returns the named dimension, or a unit-sized placeholder at
// position 0 when the record does not carry it.
func (r *Record) Dimension(name string) DimensionEntry {
	for _, d := range r.Dimensions {
		if d.Dimension == name {
			return d
		}
	}
	return DimensionEntry{Dimension: name, Size: 1, StoredSize: 1}
}

// Entry is a sub-block placed in the index. Entries are immutable once the
// index is built.
type Entry struct {
	// ID is the position of the record in the directory. It is the cache
	// identity of the tile.
	ID int

	FilePart int
	Offset   int64

	// Global logical placement at full resolution.
	X, Y          int
	Width, Height int

	// Stored pixel size of the payload.
	StoredWidth, StoredHeight int

	Downscale   int
	Compression compression.Tag
	PixelType   PixelType
	PyramidType PyramidType
	Key         DimensionKey

	dimCount int
}

// Format returns the decoded layout of the tile payload.
func (e *Entry) Format() compression.PixelFormat {
	return e.PixelType.Format(e.StoredWidth, e.StoredHeight)
}

// DecodedSize returns the number of bytes of the decoded tile.
func (e *Entry) DecodedSize() int {
	return e.StoredWidth * e.StoredHeight * e.PixelType.PixelBytes()
}

// checkSize rejects stored sizes that are negative or decode to more than
// maxTileBytes.
func (e *Entry) checkSize() error {
	w, h := e.StoredWidth, e.StoredHeight
	if w < 0 || h < 0 || (w > 0 && h > maxTileBytes/e.PixelType.PixelBytes()/w) {
		return fmt.Errorf("%w: stored tile %dx%d of %s", ErrInvalidSegmentSize, w, h, e.PixelType)
	}
	return nil
}

// downscaleOf returns round(size / stored), or 1 when no stored size is recorded.
func downscaleOf(d DimensionEntry) int {
	if d.StoredSize <= 0 || d.Size <= 0 {
		return 1
	}
	f := int(math.Round(float64(d.Size) / float64(d.StoredSize)))
	if f < 1 {
		return 1
	}
	return f
}

func storedSizeOf(d DimensionEntry) int {
	if d.StoredSize > 0 {
		return int(d.StoredSize)
	}
	return int(d.Size)
}

func newEntry(id int, rec *Record, folds dimensionFolds) *Entry {
	x := rec.Dimension(DimX)
	y := rec.Dimension(DimY)
	return &Entry{
		ID:           id,
		FilePart:     int(rec.FilePart),
		Offset:       rec.FilePosition,
		X:            int(x.Start),
		Y:            int(y.Start),
		Width:        int(x.Size),
		Height:       int(y.Size),
		StoredWidth:  storedSizeOf(x),
		StoredHeight: storedSizeOf(y),
		Downscale:    downscaleOf(x),
		Compression:  rec.Compression,
		PixelType:    rec.PixelType,
		PyramidType:  rec.PyramidType,
		Key:          folds.key(rec),
		dimCount:     len(rec.Dimensions),
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
