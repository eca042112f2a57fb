package compression

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
)

// JPEG errors
var (
	ErrJPEGSizeMismatch = errors.New("compression: JPEG dimensions do not match tile")
	ErrJPEGDepth        = errors.New("compression: JPEG tiles must have 8-bit samples")
)

// JPEGDecompress decodes a baseline JPEG tile into the stored layout: one
// byte per pixel for gray tiles, B,G,R (and A=255 for 4 samples) otherwise.
func JPEGDecompress(src []byte, f PixelFormat) ([]byte, error) {
	if f.BytesPerSample != 1 {
		return nil, ErrJPEGDepth
	}
	img, err := jpeg.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() < f.Width || b.Dy() < f.Height {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrJPEGSizeMismatch, b.Dx(), b.Dy(), f.Width, f.Height)
	}

	dst := make([]byte, f.Size())
	switch f.Samples {
	case 1:
		if g, ok := img.(*image.Gray); ok {
			for y := 0; y < f.Height; y++ {
				row := g.Pix[y*g.Stride : y*g.Stride+f.Width]
				copy(dst[y*f.Width:], row)
			}
			return dst, nil
		}
		i := 0
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				dst[i] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
				i++
			}
		}
	case 3, 4:
		i := 0
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
				dst[i], dst[i+1], dst[i+2] = c.B, c.G, c.R
				if f.Samples == 4 {
					dst[i+3] = 0xFF
				}
				i += f.Samples
			}
		}
	default:
		return nil, ErrInvalidFormat
	}
	return dst, nil
}
