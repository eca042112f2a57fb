// Package byteio provides bounds-checked little-endian readers and writers
// for the fixed-layout segments of CZI files.
//
// Every multi-byte value in a CZI file is little-endian. Segment structures
// are fixed-size records padded with spare bytes, so the reader exposes
// Skip and fixed-width string helpers alongside the integer accessors.
package byteio

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
)

var (
	// ErrShortBuffer is returned when a read cannot complete because the
	// buffer holds fewer bytes than requested.
	ErrShortBuffer = errors.New("byteio: buffer too short")

	// ErrNegativeSize is returned when a size parameter is negative.
	ErrNegativeSize = errors.New("byteio: negative size")

	// ErrVarintOverflow is returned when a varint does not fit in 64 bits.
	ErrVarintOverflow = errors.New("byteio: varint overflows 64 bits")
)

// ByteOrder is the byte order used by CZI files.
var ByteOrder = binary.LittleEndian

// Reader reads little-endian values from a byte slice.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	if r.pos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.pos
}

// Pos returns the current read position.
func (r *Reader) Pos() int {
	return r.pos
}

// SetPos moves the read position. The position may equal len(data).
func (r *Reader) SetPos(pos int) error {
	if pos < 0 || pos > len(r.data) {
		return ErrShortBuffer
	}
	r.pos = pos
	return nil
}

// Skip advances the read position by n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 {
		return ErrNegativeSize
	}
	if r.pos+n > len(r.data) {
		return ErrShortBuffer
	}
	r.pos += n
	return nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrShortBuffer
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes returns the next n bytes. The result aliases the underlying buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	if r.pos+n > len(r.data) {
		return nil, ErrShortBuffer
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, ErrShortBuffer
	}
	v := ByteOrder.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadInt32 reads a signed 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads an unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, ErrShortBuffer
	}
	v := ByteOrder.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadInt64 reads a signed 64-bit integer.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadFloat32 reads a 32-bit IEEE 754 value.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadFixedString reads an n-byte field and returns its text with trailing
// NUL bytes and surrounding spaces removed. All n bytes are consumed.
func (r *Reader) ReadFixedString(n int) (string, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b)), nil
}

// ReadUvarint reads a varint with 7 payload bits per byte, least
// significant group first, high bit set on every byte but the last.
func (r *Reader) ReadUvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	switch {
	case n == 0:
		return 0, ErrShortBuffer
	case n < 0:
		return 0, ErrVarintOverflow
	}
	r.pos += n
	return v, nil
}

// Writer appends little-endian values to a growing buffer.
type Writer struct {
	data []byte
}

// NewWriter creates a Writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{data: make([]byte, 0, capacity)}
}

// Bytes returns the written data.
func (w *Writer) Bytes() []byte {
	return w.data
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.data)
}

// WriteBytes appends b.
func (w *Writer) WriteBytes(b []byte) {
	w.data = append(w.data, b...)
}

// WriteZeros appends n zero bytes.
func (w *Writer) WriteZeros(n int) {
	for i := 0; i < n; i++ {
		w.data = append(w.data, 0)
	}
}

// WriteInt32 appends a signed 32-bit integer.
func (w *Writer) WriteInt32(v int32) {
	w.data = ByteOrder.AppendUint32(w.data, uint32(v))
}

// WriteInt64 appends a signed 64-bit integer.
func (w *Writer) WriteInt64(v int64) {
	w.data = ByteOrder.AppendUint64(w.data, uint64(v))
}

// WriteFloat32 appends a 32-bit IEEE 754 value.
func (w *Writer) WriteFloat32(v float32) {
	w.data = ByteOrder.AppendUint32(w.data, math.Float32bits(v))
}

// WriteFixedString appends s padded with NUL bytes (or truncated) to n bytes.
func (w *Writer) WriteFixedString(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	w.data = append(w.data, b...)
}

// WriteUvarint appends v in the format read by ReadUvarint.
func (w *Writer) WriteUvarint(v uint64) {
	w.data = binary.AppendUvarint(w.data, v)
}

// PadTo appends zero bytes until the length is a multiple of align.
func (w *Writer) PadTo(align int) {
	if rem := len(w.data) % align; rem != 0 {
		w.WriteZeros(align - rem)
	}
}
