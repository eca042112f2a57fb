package czi

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mrjoshuak/go-czi/compression"
)

// shared is the state common to a reader and its duplicates. The last
// reader to close releases it.
type shared struct {
	mu   sync.Mutex
	refs int

	opts        Options
	logger      zerolog.Logger
	header      *FileHeader
	index       *Index
	codecs      *compression.Dispatcher
	cache       *TileCache
	pool        *BufferPool
	opener      PartOpener
	metadataXML string
}

func (s *shared) acquire() {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
}

func (s *shared) release() {
	s.mu.Lock()
	s.refs--
	last := s.refs == 0
	s.mu.Unlock()
	if last {
		s.cache.Purge()
		s.codecs.Close()
		s.logger.Debug().Msg("released shared reader state")
	}
}

// Reader reads regions of a CZI file. ReadRegion, ReadPlane and VerifyTiles
// are safe for concurrent use. The series and resolution cursor used by
// OpenBytes is not; give each goroutine its own Dup.
type Reader struct {
	s *shared

	mu     sync.Mutex
	parts  map[int]PartHandle
	closed bool

	series, level int
}

// Open memory-maps path, along with opts.PartPaths for multi-part files.
func Open(path string, opts Options) (*Reader, error) {
	return OpenWith(MmapOpener(path, opts.PartPaths), opts)
}

// OpenWith reads the header and directory from part 0 and builds the index.
func OpenWith(opener PartOpener, opts Options) (*Reader, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	h0, err := opener(0)
	if err != nil {
		return nil, err
	}
	header, err := ReadFileHeader(h0)
	if err != nil {
		h0.Close()
		return nil, err
	}
	records, err := ReadDirectory(h0, int64(h0.Len()), header.DirectoryPosition)
	if err != nil {
		h0.Close()
		return nil, err
	}
	idx, err := BuildIndex(records, opts.Autostitch, opts.Logger)
	if err != nil {
		h0.Close()
		return nil, err
	}
	r, err := newReader(idx, opener, opts)
	if err != nil {
		h0.Close()
		return nil, err
	}
	r.parts[0] = h0
	r.s.header = header

	if header.MetadataPosition > 0 {
		xml, err := ReadMetadataXML(h0, header.MetadataPosition)
		if err != nil {
			r.s.logger.Warn().Err(err).Msg("metadata segment unreadable")
		} else {
			r.s.metadataXML = xml
		}
	}
	r.s.logger.Info().
		Int32("major", header.Major).
		Int32("minor", header.Minor).
		Int("subblocks", len(idx.Entries)).
		Int("series", len(idx.Series)).
		Msg("opened czi file")
	return r, nil
}

// NewReader serves an index built from directory records obtained
// elsewhere. Entry offsets must point at sub-block segments in the parts
// returned by opener.
func NewReader(idx *Index, opener PartOpener, opts Options) (*Reader, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return newReader(idx, opener, opts)
}

func newReader(idx *Index, opener PartOpener, opts Options) (*Reader, error) {
	codecs, err := compression.NewDispatcher(opts.JXR, opts.Logger)
	if err != nil {
		return nil, err
	}
	for _, e := range idx.Entries {
		if err := codecs.CheckTag(e.Compression); err != nil {
			codecs.Close()
			return nil, fmt.Errorf("czi: sub-block %d: %w", e.ID, err)
		}
	}
	s := &shared{
		refs:   1,
		opts:   opts,
		logger: opts.Logger,
		index:  idx,
		codecs: codecs,
		cache:  NewTileCache(opts.CacheBytes),
		pool:   NewBufferPool(opts.PoolBytes),
		opener: opener,
	}
	return &Reader{s: s, parts: make(map[int]PartHandle)}, nil
}

// Dup returns a reader sharing the index, codecs and tile cache, with its
// own part handles and cursor.
func (r *Reader) Dup() (*Reader, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}
	r.s.acquire()
	return &Reader{
		s:      r.s,
		parts:  make(map[int]PartHandle),
		series: r.series,
		level:  r.level,
	}, nil
}

// Close closes the part handles of r. Shared state is released when the
// last duplicate is closed. Closing twice is a no-op.
func (r *Reader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	parts := r.parts
	r.parts = nil
	r.mu.Unlock()

	var errs []error
	for n, h := range parts {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("part %d: %w", n, err))
		}
	}
	r.s.release()
	return errors.Join(errs...)
}

func (r *Reader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Reader) part(n int) (PartHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if h, ok := r.parts[n]; ok {
		return h, nil
	}
	h, err := r.s.opener(n)
	if err != nil {
		return nil, err
	}
	r.parts[n] = h
	return h, nil
}

// Header returns the file header, or nil for readers built by NewReader.
func (r *Reader) Header() *FileHeader { return r.s.header }

// Index returns the shared index.
func (r *Reader) Index() *Index { return r.s.index }

// MetadataXML returns the raw XML metadata document, if any.
func (r *Reader) MetadataXML() string { return r.s.metadataXML }

// CacheStats returns the shared tile cache counters.
func (r *Reader) CacheStats() CacheStats { return r.s.cache.Stats() }

// PoolStats returns the payload buffer pool counters.
func (r *Reader) PoolStats() PoolStats { return r.s.pool.Stats() }

// SeriesCount returns the number of series.
func (r *Reader) SeriesCount() int { return len(r.s.index.Series) }

// AllSeries returns every series in signature order.
func (r *Reader) AllSeries() []*Series { return r.s.index.Series }

func (r *Reader) lookup(series, level int) (*Series, *Level, error) {
	if series < 0 || series >= len(r.s.index.Series) {
		return nil, nil, fmt.Errorf("%w: %d", ErrSeriesOutOfRange, series)
	}
	s := r.s.index.Series[series]
	if level < 0 || level >= len(s.Levels) {
		return nil, nil, fmt.Errorf("%w: %d of series %d", ErrLevelOutOfRange, level, series)
	}
	return s, s.Levels[level], nil
}

// SetSeries moves the cursor to series i at full resolution.
func (r *Reader) SetSeries(i int) error {
	if _, _, err := r.lookup(i, 0); err != nil {
		return err
	}
	r.series, r.level = i, 0
	return nil
}

// SeriesIndex returns the cursor series.
func (r *Reader) SeriesIndex() int { return r.series }

// SetResolution moves the cursor to level l of the current series.
func (r *Reader) SetResolution(l int) error {
	if _, _, err := r.lookup(r.series, l); err != nil {
		return err
	}
	r.level = l
	return nil
}

// Resolution returns the cursor level.
func (r *Reader) Resolution() int { return r.level }

// CurrentSeries returns the series under the cursor.
func (r *Reader) CurrentSeries() *Series { return r.s.index.Series[r.series] }

// CurrentLevel returns the level under the cursor.
func (r *Reader) CurrentLevel() *Level { return r.CurrentSeries().Levels[r.level] }

// OpenBytes reads the rectangle (x, y, w, h) of plane no at the cursor.
func (r *Reader) OpenBytes(ctx context.Context, no, x, y, w, h int) ([]byte, error) {
	key, err := r.CurrentSeries().PlaneKey(no)
	if err != nil {
		return nil, err
	}
	return r.ReadRegion(ctx, r.series, r.level, key, Rect{X: x, Y: y, Width: w, Height: h})
}

// ReadPlane reads a whole plane of a level.
func (r *Reader) ReadPlane(ctx context.Context, series, level int, key DimensionKey) ([]byte, error) {
	_, lv, err := r.lookup(series, level)
	if err != nil {
		return nil, err
	}
	return r.ReadRegion(ctx, series, level, key, Rect{Width: lv.Width, Height: lv.Height})
}
