package czi

import (
	"errors"
	"fmt"
)

// Format errors. These are fatal: the file cannot be opened.
var (
	ErrInvalidMagic         = errors.New("czi: invalid magic, not a ZISRAWFILE")
	ErrInvalidSegment       = errors.New("czi: unexpected segment id")
	ErrInvalidSegmentSize   = errors.New("czi: invalid segment size")
	ErrUnsupportedSchema    = errors.New("czi: unsupported directory entry schema")
	ErrUnsupportedPixelType = errors.New("czi: unsupported pixel type")
	ErrMixedPixelTypes      = errors.New("czi: mixed pixel types within one series")
	ErrEmptyDirectory       = errors.New("czi: directory has no sub-blocks")
)

// Read errors.
var (
	ErrClosed           = errors.New("czi: reader is closed")
	ErrSeriesOutOfRange = errors.New("czi: series index out of range")
	ErrLevelOutOfRange  = errors.New("czi: resolution level out of range")
	ErrPlaneOutOfRange  = errors.New("czi: plane number out of range")
	ErrRegionOutOfRange = errors.New("czi: region outside the plane")
	ErrMissingPart      = errors.New("czi: no path for file part")
	ErrInvalidSubBlock  = errors.New("czi: invalid sub-block segment")
)

// FormatError records where in a file a structural error was found.
type FormatError struct {
	Segment string
	Offset  int64
	Err     error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("czi: %s segment at offset %d: %v", e.Segment, e.Offset, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
