package czi

import (
	"fmt"
	"math"
	"slices"

	"github.com/rs/zerolog"
)

// DimensionKey addresses one plane of a series after rotation, illumination
// and phase have been folded into Z, C and T.
type DimensionKey struct {
	C, Z, T int
}

func (k DimensionKey) String() string {
	return fmt.Sprintf("C%d Z%d T%d", k.C, k.Z, k.T)
}

// PlaneIndex maps a dimension key to the tiles of one resolution level.
// Tiles of a plane are kept in directory order.
type PlaneIndex struct {
	planes map[DimensionKey][]*Entry
}

func newPlaneIndex(entries []*Entry) *PlaneIndex {
	p := &PlaneIndex{planes: make(map[DimensionKey][]*Entry)}
	for _, e := range entries {
		p.planes[e.Key] = append(p.planes[e.Key], e)
	}
	for _, tiles := range p.planes {
		slices.SortFunc(tiles, func(a, b *Entry) int { return a.ID - b.ID })
	}
	return p
}

// Lookup returns the tiles of the plane at k, or nil.
func (p *PlaneIndex) Lookup(k DimensionKey) []*Entry {
	return p.planes[k]
}

// Len returns the number of distinct planes.
func (p *PlaneIndex) Len() int {
	return len(p.planes)
}

// Keys returns the plane keys ordered by T, then Z, then C.
func (p *PlaneIndex) Keys() []DimensionKey {
	keys := make([]DimensionKey, 0, len(p.planes))
	for k := range p.planes {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b DimensionKey) int {
		if a.T != b.T {
			return a.T - b.T
		}
		if a.Z != b.Z {
			return a.Z - b.Z
		}
		return a.C - b.C
	})
	return keys
}

// Level is one resolution of a series. Coordinates are in level pixels.
type Level struct {
	Signature Signature
	Downscale int

	OriginX, OriginY int
	Width, Height    int

	Planes  *PlaneIndex
	Entries []*Entry
}

// TileRect returns the placement of e relative to the level origin.
func (l *Level) TileRect(e *Entry) Rect {
	return Rect{
		X:      floorDiv(e.X, l.Downscale) - l.OriginX,
		Y:      floorDiv(e.Y, l.Downscale) - l.OriginY,
		Width:  e.StoredWidth,
		Height: e.StoredHeight,
	}
}

// Series is one image pyramid: full resolution plus downscaled levels.
type Series struct {
	Index                      int
	Scene, Block, View, Mosaic int
	PixelType                  PixelType

	SizeZ, SizeC, SizeT int

	Levels []*Level
}

// ResolutionCount returns the number of levels.
func (s *Series) ResolutionCount() int {
	return len(s.Levels)
}

// ImageCount returns the number of planes, SizeZ*SizeC*SizeT.
func (s *Series) ImageCount() int {
	return s.SizeZ * s.SizeC * s.SizeT
}

// PlaneKey converts a plane number to a key using XYCZT order.
func (s *Series) PlaneKey(no int) (DimensionKey, error) {
	if no < 0 || no >= s.ImageCount() {
		return DimensionKey{}, fmt.Errorf("%w: %d of %d", ErrPlaneOutOfRange, no, s.ImageCount())
	}
	return DimensionKey{
		C: no % s.SizeC,
		Z: (no / s.SizeC) % s.SizeZ,
		T: no / (s.SizeC * s.SizeZ),
	}, nil
}

// PlaneNumber is the inverse of PlaneKey.
func (s *Series) PlaneNumber(k DimensionKey) int {
	return (k.T*s.SizeZ+k.Z)*s.SizeC + k.C
}

// Index is the immutable result of grouping a directory. It is shared by
// every reader opened on the same file.
type Index struct {
	Entries []*Entry
	Series  []*Series
	Layout  SignatureLayout
}

// Prestitched reports whether the pyramid levels were written as whole
// stitched planes. It is false when any tile is a single-tile pyramid level.
func (idx *Index) Prestitched() bool {
	for _, e := range idx.Entries {
		if e.PyramidType == PyramidSingle {
			return false
		}
	}
	return true
}

// BuildIndex groups directory records into series and resolution levels.
// Fatal format errors are unsupported pixel types, stored tile sizes that
// are negative or too large to decode, and mixed pixel types within a
// series.
func BuildIndex(records []Record, autostitch bool, logger zerolog.Logger) (*Index, error) {
	if len(records) == 0 {
		return nil, ErrEmptyDirectory
	}
	st := scanRecords(records)
	folds := st.folds()

	entries := make([]*Entry, len(records))
	sigs := make([]Signature, len(records))
	for i := range records {
		rec := &records[i]
		if err := rec.PixelType.Validate(); err != nil {
			return nil, fmt.Errorf("directory entry %d: %w", i, err)
		}
		entries[i] = newEntry(i, rec, folds)
		if err := entries[i].checkSize(); err != nil {
			return nil, &FormatError{Segment: SegmentDirectory, Offset: rec.FilePosition,
				Err: fmt.Errorf("directory entry %d: %w", i, err)}
		}
		sigs[i] = signatureOf(rec, entries[i].Downscale, autostitch)
	}

	idx := &Index{Entries: entries, Layout: newSignatureLayout(st)}
	for _, chain := range chainSeries(groupEntries(entries, sigs)) {
		s, err := newSeries(len(idx.Series), chain)
		if err != nil {
			return nil, err
		}
		idx.Series = append(idx.Series, s)
		logger.Debug().
			Int("series", s.Index).
			Str("signature", idx.Layout.Format(chain[0].sig)).
			Int("levels", len(s.Levels)).
			Int("planes", s.ImageCount()).
			Msg("indexed series")
	}
	return idx, nil
}

func newSeries(index int, chain []*group) (*Series, error) {
	head := chain[0]
	s := &Series{
		Index:     index,
		Scene:     head.sig[sigScene],
		Block:     head.sig[sigBlock],
		View:      head.sig[sigView],
		Mosaic:    head.sig[sigMosaic],
		PixelType: head.entries[0].PixelType,
	}

	maxKey := DimensionKey{}
	for _, g := range chain {
		for _, e := range g.entries {
			if e.PixelType != s.PixelType {
				return nil, fmt.Errorf("%w: series %d has %s and %s",
					ErrMixedPixelTypes, index, s.PixelType, e.PixelType)
			}
			maxKey.C = max(maxKey.C, e.Key.C)
			maxKey.Z = max(maxKey.Z, e.Key.Z)
			maxKey.T = max(maxKey.T, e.Key.T)
		}
	}
	s.SizeC, s.SizeZ, s.SizeT = maxKey.C+1, maxKey.Z+1, maxKey.T+1

	// Every level derives its extent from the logical bounds of the first.
	minX, minY, maxX, maxY := bounds(head.entries)
	for _, g := range chain {
		f := g.sig.Downscale()
		s.Levels = append(s.Levels, &Level{
			Signature: g.sig,
			Downscale: f,
			OriginX:   floorDiv(minX, f),
			OriginY:   floorDiv(minY, f),
			Width:     max(1, (maxX-minX)/f),
			Height:    max(1, (maxY-minY)/f),
			Planes:    newPlaneIndex(g.entries),
			Entries:   g.entries,
		})
	}
	return s, nil
}

func bounds(entries []*Entry) (minX, minY, maxX, maxY int) {
	minX, minY = math.MaxInt, math.MaxInt
	maxX, maxY = math.MinInt, math.MinInt
	for _, e := range entries {
		minX = min(minX, e.X)
		minY = min(minY, e.Y)
		maxX = max(maxX, e.X+e.Width)
		maxY = max(maxY, e.Y+e.Height)
	}
	return
}
