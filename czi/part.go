package czi

import (
	"fmt"
	"io"

	"golang.org/x/exp/mmap"
)

// PartHandle is an open file part. Reads at arbitrary offsets must be safe
// for concurrent use.
type PartHandle interface {
	io.ReaderAt
	io.Closer
	Len() int
}

// PartOpener opens file part n. Part 0 holds the header and directory.
type PartOpener func(part int) (PartHandle, error)

// MmapOpener maps part 0 from path and part n from extra[n-1].
func MmapOpener(path string, extra []string) PartOpener {
	return func(part int) (PartHandle, error) {
		p := path
		if part > 0 {
			if part > len(extra) {
				return nil, fmt.Errorf("%w: part %d", ErrMissingPart, part)
			}
			p = extra[part-1]
		}
		r, err := mmap.Open(p)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// BytesPart is a PartHandle over an in-memory file.
type BytesPart []byte

func (b BytesPart) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("czi: negative offset %d", off)
	}
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b BytesPart) Len() int { return len(b) }

func (b BytesPart) Close() error { return nil }

// BytesOpener serves parts from memory. parts[0] is the main file.
func BytesOpener(parts ...[]byte) PartOpener {
	return func(part int) (PartHandle, error) {
		if part < 0 || part >= len(parts) {
			return nil, fmt.Errorf("%w: part %d", ErrMissingPart, part)
		}
		return BytesPart(parts[part]), nil
	}
}
