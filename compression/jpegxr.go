package compression

import (
	"errors"
)

// ErrJXRCompressionFlag is reported by a JXRDecoder when the bitstream's
// compression flag is invalid but decoding otherwise completed.
var ErrJXRCompressionFlag = errors.New("compression: JPEG-XR stream has an invalid compression flag")

// JXRDecoder decodes JPEG-XR bitstreams. Sub-block bitstreams may omit the
// image size, so the tile dimensions are always passed explicitly. The
// returned buffer must use the stored sample order of f and must not alias
// src.
//
// No pure Go JPEG-XR implementation exists; callers plug in a binding to a
// native codec.
type JXRDecoder interface {
	DecodeJXR(src []byte, f PixelFormat) ([]byte, error)
}

// JXRDecoderFunc adapts a function to the JXRDecoder interface.
type JXRDecoderFunc func(src []byte, f PixelFormat) ([]byte, error)

// DecodeJXR calls fn(src, f).
func (fn JXRDecoderFunc) DecodeJXR(src []byte, f PixelFormat) ([]byte, error) {
	return fn(src, f)
}

func (d *Dispatcher) decodeJXR(src []byte, f PixelFormat) ([]byte, error) {
	out, err := d.jxr.DecodeJXR(src, f)
	if err == nil {
		return out, nil
	}
	// Some encoders write an invalid flag yet produce a complete image.
	if errors.Is(err, ErrJXRCompressionFlag) && len(out) == f.Size() {
		d.logger.Warn().
			Err(err).
			Int("width", f.Width).
			Int("height", f.Height).
			Msg("JPEG-XR decoder reported an invalid compression flag; using decoded data")
		return out, nil
	}
	return nil, err
}
