package czi

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mrjoshuak/go-czi/compression"
)

// Rect is a pixel rectangle.
type Rect struct {
	X, Y, Width, Height int
}

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Intersect returns the overlap of r and o.
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.Width, o.X+o.Width), min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Contains reports whether o lies inside r.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y &&
		o.X+o.Width <= r.X+r.Width && o.Y+o.Height <= r.Y+r.Height
}

type placement struct {
	entry *Entry
	tile  Rect
}

// ReadRegion composites the tiles of one plane that intersect rect. Pixels
// no tile covers hold Options.FillValue. Where tiles overlap, the tile later
// in directory order wins. Tiles that fail to decode read as zeros; only
// cancellation of ctx and invalid arguments are returned as errors.
func (r *Reader) ReadRegion(ctx context.Context, series, level int, key DimensionKey, rect Rect) ([]byte, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}
	s, lv, err := r.lookup(series, level)
	if err != nil {
		return nil, err
	}
	if rect.Empty() || !(Rect{Width: lv.Width, Height: lv.Height}).Contains(rect) {
		return nil, fmt.Errorf("%w: %+v in %dx%d", ErrRegionOutOfRange, rect, lv.Width, lv.Height)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var hits []placement
	for _, e := range lv.Planes.Lookup(key) {
		t := lv.TileRect(e)
		if !t.Intersect(rect).Empty() {
			hits = append(hits, placement{entry: e, tile: t})
		}
	}

	pixelBytes := s.PixelType.PixelBytes()
	if len(hits) == 1 && hits[0].tile == rect {
		buf, cached, err := r.readTile(ctx, hits[0].entry)
		if err != nil {
			return nil, err
		}
		if cached {
			buf = bytes.Clone(buf)
		}
		return r.finish(buf, s.PixelType), nil
	}

	out := make([]byte, rect.Width*rect.Height*pixelBytes)
	if fill := r.s.opts.FillValue; fill != 0 {
		for i := range out {
			out[i] = fill
		}
	}

	bufs := make([][]byte, len(hits))
	err = ParallelForWithError(r.s.opts.parallelConfig(), len(hits), func(i int) error {
		buf, _, err := r.readTile(ctx, hits[i].entry)
		bufs[i] = buf
		return err
	})
	if err != nil {
		return nil, err
	}
	for i, h := range hits {
		copyRect(out, rect, bufs[i], h.tile, pixelBytes)
	}
	return r.finish(out, s.PixelType), nil
}

func (r *Reader) finish(buf []byte, pt PixelType) []byte {
	if r.s.opts.RGBOrder && pt.Samples() >= 3 {
		swapRedBlue(buf, pt.BytesPerSample(), pt.Samples())
	}
	return buf
}

// copyRect copies the overlap of a tile into the region buffer.
func copyRect(dst []byte, region Rect, src []byte, tile Rect, pixelBytes int) {
	o := tile.Intersect(region)
	rowBytes := o.Width * pixelBytes
	for y := o.Y; y < o.Y+o.Height; y++ {
		d := ((y-region.Y)*region.Width + (o.X - region.X)) * pixelBytes
		s := ((y-tile.Y)*tile.Width + (o.X - tile.X)) * pixelBytes
		copy(dst[d:d+rowBytes], src[s:s+rowBytes])
	}
}

// swapRedBlue exchanges the first and third sample of every pixel.
func swapRedBlue(buf []byte, sampleBytes, samples int) {
	pixel := sampleBytes * samples
	for p := 0; p+pixel <= len(buf); p += pixel {
		for b := 0; b < sampleBytes; b++ {
			buf[p+b], buf[p+2*sampleBytes+b] = buf[p+2*sampleBytes+b], buf[p+b]
		}
	}
}

// readTile returns the decoded tile. cached reports whether the buffer is
// shared through the tile cache. Uncompressed tiles bypass the cache.
func (r *Reader) readTile(ctx context.Context, e *Entry) (buf []byte, cached bool, err error) {
	if e.Compression == compression.Uncompressed {
		buf, _ = r.decodeTile(e)
		return buf, false, nil
	}
	buf, err = r.s.cache.GetOrDecode(ctx, e.ID, func() ([]byte, bool) {
		return r.decodeTile(e)
	})
	return buf, true, err
}

// decodeTile reads and decodes one tile. Failures are logged and replaced
// by a zero buffer; ok reports whether the result is real pixel data.
func (r *Reader) decodeTile(e *Entry) ([]byte, bool) {
	raw, release, err := r.readPayload(e)
	if err != nil {
		r.s.logger.Warn().
			Err(err).
			Int("subblock", e.ID).
			Int("part", e.FilePart).
			Int64("offset", e.Offset).
			Msg("tile payload unreadable, substituting zeros")
		return make([]byte, e.DecodedSize()), false
	}
	defer release()
	return r.s.codecs.DecodeOrZero(e.Compression, raw, e.Format())
}

// loadTile is decodeTile without recovery.
func (r *Reader) loadTile(e *Entry) ([]byte, error) {
	raw, release, err := r.readPayload(e)
	if err != nil {
		return nil, err
	}
	defer release()
	return r.s.codecs.Decode(e.Compression, raw, e.Format())
}

// poolable reports whether decoding t never aliases the payload buffer.
func poolable(t compression.Tag) bool {
	return t != compression.Uncompressed && t != compression.JPEGXR
}

// readPayload reads the compressed bytes of e. release must be called once
// the payload is no longer referenced.
func (r *Reader) readPayload(e *Entry) (raw []byte, release func(), err error) {
	h, err := r.part(e.FilePart)
	if err != nil {
		return nil, nil, err
	}
	start, size, err := payloadSpan(h, e.Offset, e.dimCount)
	if err != nil {
		return nil, nil, err
	}
	if start+size > int64(h.Len()) {
		return nil, nil, fmt.Errorf("%w: payload [%d, %d) past end of part (%d bytes)",
			ErrInvalidSubBlock, start, start+size, h.Len())
	}

	var pooled []byte
	if poolable(e.Compression) {
		pooled = r.s.pool.Get(int(size))
	}
	raw = pooled
	if raw == nil {
		raw = make([]byte, size)
	}
	release = func() { r.s.pool.Put(pooled) }

	if n, err := h.ReadAt(raw, start); err != nil && n < len(raw) {
		release()
		return nil, nil, err
	}
	return raw, release, nil
}

// TileFailure describes a tile that could not be decoded.
type TileFailure struct {
	Series, Level int
	Entry         *Entry
	Err           error
}

// VerifyTiles decodes every tile of every series without using the cache
// and reports the failures. It stops early only when ctx ends.
func (r *Reader) VerifyTiles(ctx context.Context) ([]TileFailure, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}
	type job struct {
		series, level int
		entry         *Entry
	}
	var jobs []job
	for _, s := range r.s.index.Series {
		for l, lv := range s.Levels {
			for _, e := range lv.Entries {
				jobs = append(jobs, job{series: s.Index, level: l, entry: e})
			}
		}
	}

	errs := make([]error, len(jobs))
	err := ParallelForWithError(r.s.opts.parallelConfig(), len(jobs), func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, errs[i] = r.loadTile(jobs[i].entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var failures []TileFailure
	for i, j := range jobs {
		if errs[i] != nil {
			failures = append(failures, TileFailure{Series: j.series, Level: j.level, Entry: j.entry, Err: errs[i]})
		}
	}
	return failures, nil
}
