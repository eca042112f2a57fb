// Package compression provides the sub-block codecs of CZI files.
//
// Each compressed tile carries a compression tag in its directory entry.
// A Dispatcher maps the tag to a codec and decodes the raw payload into a
// pixel buffer of exactly Width*Height*BytesPerSample*Samples bytes, laid
// out row-major with interleaved samples in the stored (BGR) order.
package compression

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Tag identifies the compression of a sub-block payload.
type Tag int32

// Compression tags defined by the CZI format.
const (
	Uncompressed Tag = 0
	JPEG         Tag = 1
	LZW          Tag = 2
	JPEGXR       Tag = 4
	Zstd0        Tag = 5
	Zstd1        Tag = 6

	// Camera-specific packed 12-bit formats.
	Camera104 Tag = 104
	Camera504 Tag = 504
)

// String returns the tag name.
func (t Tag) String() string {
	switch t {
	case Uncompressed:
		return "uncompressed"
	case JPEG:
		return "jpeg"
	case LZW:
		return "lzw"
	case JPEGXR:
		return "jpegxr"
	case Zstd0:
		return "zstd0"
	case Zstd1:
		return "zstd1"
	case Camera104:
		return "camera104"
	case Camera504:
		return "camera504"
	default:
		return fmt.Sprintf("tag(%d)", int32(t))
	}
}

// Codec errors
var (
	ErrUnsupportedCompression = errors.New("compression: unsupported compression tag")
	ErrShortOutput            = errors.New("compression: decoded data shorter than expected")
	ErrInvalidFormat          = errors.New("compression: invalid pixel format")
)

// PixelFormat describes the decoded layout of one tile.
type PixelFormat struct {
	Width          int
	Height         int
	BytesPerSample int
	Samples        int // interleaved samples per pixel (1 gray, 3 BGR, 4 BGRA)
}

// PixelBytes returns the number of bytes per pixel.
func (f PixelFormat) PixelBytes() int {
	return f.BytesPerSample * f.Samples
}

// Size returns the decoded buffer size in bytes.
func (f PixelFormat) Size() int {
	return f.Width * f.Height * f.PixelBytes()
}

func (f PixelFormat) validate() error {
	if f.Width < 0 || f.Height < 0 || f.BytesPerSample <= 0 || f.Samples <= 0 {
		return ErrInvalidFormat
	}
	return nil
}

// DecodeError describes a failed tile decode.
type DecodeError struct {
	Tag Tag
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("compression: %s decode failed: %v", e.Tag, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Dispatcher decodes sub-block payloads by compression tag.
// A Dispatcher is safe for concurrent use.
type Dispatcher struct {
	zstd   *zstdCodec
	jxr    JXRDecoder
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher. jxr may be nil, in which case
// JPEG-XR tiles are reported as unsupported.
func NewDispatcher(jxr JXRDecoder, logger zerolog.Logger) (*Dispatcher, error) {
	z, err := newZstdCodec()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{zstd: z, jxr: jxr, logger: logger}, nil
}

// Supports reports whether the dispatcher can decode tiles with the tag.
func (d *Dispatcher) Supports(t Tag) bool {
	switch t {
	case Uncompressed, JPEG, LZW, Zstd0, Zstd1, Camera104, Camera504:
		return true
	case JPEGXR:
		return d.jxr != nil
	default:
		return false
	}
}

// CheckTag returns ErrUnsupportedCompression (wrapped with the tag) when
// the tag cannot be decoded.
func (d *Dispatcher) CheckTag(t Tag) error {
	if d.Supports(t) {
		return nil
	}
	if t == JPEGXR {
		return fmt.Errorf("%w: %s (no JPEG-XR decoder configured)", ErrUnsupportedCompression, t)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedCompression, t)
}

// Decode decompresses raw into a buffer of exactly f.Size() bytes.
// For Uncompressed the result aliases a prefix of raw.
func (d *Dispatcher) Decode(t Tag, raw []byte, f PixelFormat) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if err := d.CheckTag(t); err != nil {
		return nil, err
	}

	var out []byte
	var err error
	switch t {
	case Uncompressed:
		out = raw
	case JPEG:
		out, err = JPEGDecompress(raw, f)
	case LZW:
		out, err = LZWDecompress(raw, f.Size())
	case JPEGXR:
		out, err = d.decodeJXR(raw, f)
	case Zstd0:
		out, err = d.zstd.decompress0(raw, f.Size())
	case Zstd1:
		out, err = d.zstd.decompress1(raw, f)
	case Camera104:
		out, err = Camera104Decompress(raw, f)
	case Camera504:
		out, err = Camera504Decompress(raw, f)
	}
	if err != nil {
		return nil, &DecodeError{Tag: t, Err: err}
	}

	expected := f.Size()
	if len(out) < expected {
		return nil, &DecodeError{Tag: t, Err: fmt.Errorf("%w: got %d bytes, want %d", ErrShortOutput, len(out), expected)}
	}
	return out[:expected], nil
}

// DecodeOrZero is Decode with recovery: on failure the error is logged and
// a zero-filled buffer of the expected size is returned. The second result
// reports whether decoding succeeded.
func (d *Dispatcher) DecodeOrZero(t Tag, raw []byte, f PixelFormat) ([]byte, bool) {
	out, err := d.Decode(t, raw, f)
	if err == nil {
		return out, true
	}
	d.logger.Warn().
		Err(err).
		Stringer("compression", t).
		Int("width", f.Width).
		Int("height", f.Height).
		Int("payload", len(raw)).
		Msg("tile decode failed, substituting zeros")
	size := 0
	if f.validate() == nil {
		size = f.Size()
	}
	return make([]byte, size), false
}

// Close releases codec resources. The dispatcher must not be used afterwards.
func (d *Dispatcher) Close() {
	if d.zstd != nil {
		d.zstd.close()
	}
}
