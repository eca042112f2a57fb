package compression

import (
	"bytes"
	"errors"
	"io"

	"golang.org/x/image/tiff/lzw"
)

// ErrLZWCorrupted is returned when an LZW stream cannot be decoded.
var ErrLZWCorrupted = errors.New("compression: corrupted LZW data")

// LZWDecompress decodes a TIFF-variant LZW stream (MSB-first codes with the
// early code-width change) into exactly expected bytes.
func LZWDecompress(src []byte, expected int) ([]byte, error) {
	if expected == 0 {
		return []byte{}, nil
	}
	if len(src) == 0 {
		return nil, ErrLZWCorrupted
	}

	r := lzw.NewReader(bytes.NewReader(src), lzw.MSB, 8)
	defer r.Close()

	dst := make([]byte, expected)
	n, err := io.ReadFull(r, dst)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrLZWCorrupted, err)
	}
	return dst[:n], nil
}
