package compression

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/mrjoshuak/go-czi/internal/byteio"
)

// Zstd errors
var (
	ErrZstdHeader   = errors.New("compression: invalid zstd1 header")
	ErrHiLoOddSize  = errors.New("compression: hi/lo unpacking requires an even byte count")
	ErrHiLoNotWords = errors.New("compression: hi/lo unpacking requires 16-bit samples")
)

// zstd1 header chunk types
const (
	zstd1ChunkHiLo = 1
)

// Zstd1Header is the parsed header preceding a zstd1 payload.
type Zstd1Header struct {
	Size       int  // header length in bytes, including the size field
	HiLoPacked bool // payload holds all low bytes followed by all high bytes
}

// zstdCodec wraps a shared decoder; DecodeAll is safe for concurrent use.
type zstdCodec struct {
	dec *zstd.Decoder
}

func newZstdCodec() (*zstdCodec, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, err
	}
	return &zstdCodec{dec: dec}, nil
}

func (z *zstdCodec) close() {
	z.dec.Close()
}

func (z *zstdCodec) decompress0(src []byte, expected int) ([]byte, error) {
	out, err := z.dec.DecodeAll(src, make([]byte, 0, expected))
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

func (z *zstdCodec) decompress1(src []byte, f PixelFormat) ([]byte, error) {
	hdr, err := ParseZstd1Header(src)
	if err != nil {
		return nil, err
	}
	out, err := z.decompress0(src[hdr.Size:], f.Size())
	if err != nil {
		return nil, err
	}
	if !hdr.HiLoPacked {
		return out, nil
	}
	if f.BytesPerSample != 2 {
		return nil, ErrHiLoNotWords
	}
	if len(out) > f.Size() {
		out = out[:f.Size()]
	}
	return UnpackHiLo(out)
}

// ParseZstd1Header parses the header of a zstd1 payload. The header starts
// with a varint holding the total header size, followed by chunks of
// (type byte, payload). Chunk type 1 carries one byte whose bit 0 enables
// hi/lo byte unpacking. Unknown chunk types end parsing; the payload always
// starts at Size.
func ParseZstd1Header(src []byte) (Zstd1Header, error) {
	r := byteio.NewReader(src)
	size, err := r.ReadUvarint()
	if err != nil {
		return Zstd1Header{}, fmt.Errorf("%w: %v", ErrZstdHeader, err)
	}
	if size < uint64(r.Pos()) || size > uint64(len(src)) {
		return Zstd1Header{}, fmt.Errorf("%w: header size %d", ErrZstdHeader, size)
	}

	hdr := Zstd1Header{Size: int(size)}
	chunks := byteio.NewReader(src[r.Pos():hdr.Size])
	for chunks.Len() > 0 {
		typ, _ := chunks.ReadByte()
		if typ != zstd1ChunkHiLo {
			break
		}
		v, err := chunks.ReadByte()
		if err != nil {
			return Zstd1Header{}, fmt.Errorf("%w: truncated hi/lo chunk", ErrZstdHeader)
		}
		hdr.HiLoPacked = v&1 == 1
	}
	return hdr, nil
}

// UnpackHiLo converts a buffer holding n low bytes followed by n high bytes
// into n little-endian 16-bit samples.
func UnpackHiLo(src []byte) ([]byte, error) {
	if len(src)%2 != 0 {
		return nil, ErrHiLoOddSize
	}
	half := len(src) / 2
	lo, hi := src[:half], src[half:]
	dst := make([]byte, len(src))
	for i := 0; i < half; i++ {
		dst[2*i] = lo[i]
		dst[2*i+1] = hi[i]
	}
	return dst, nil
}
