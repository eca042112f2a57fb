package czi

import (
	"fmt"

	"github.com/mrjoshuak/go-czi/compression"
)

// PixelType is the sample layout of a sub-block.
type PixelType int32

// Pixel types defined by the CZI format. Color types store samples in
// B, G, R(, A) order.
const (
	Gray8        PixelType = 0
	Gray16       PixelType = 1
	GrayFloat    PixelType = 2
	Bgr24        PixelType = 3
	Bgr48        PixelType = 4
	BgrFloat     PixelType = 8
	Bgra32       PixelType = 9
	Complex      PixelType = 10
	ComplexFloat PixelType = 11
	Gray32       PixelType = 12
	GrayDouble   PixelType = 13
)

var pixelTypeNames = map[PixelType]string{
	Gray8:        "Gray8",
	Gray16:       "Gray16",
	GrayFloat:    "Gray32Float",
	Bgr24:        "Bgr24",
	Bgr48:        "Bgr48",
	BgrFloat:     "Bgr96Float",
	Bgra32:       "Bgra32",
	Complex:      "Gray64ComplexFloat",
	ComplexFloat: "Bgr192ComplexFloat",
	Gray32:       "Gray32",
	GrayDouble:   "Gray64",
}

func (p PixelType) String() string {
	if s, ok := pixelTypeNames[p]; ok {
		return s
	}
	return fmt.Sprintf("PixelType(%d)", int32(p))
}

// BytesPerSample returns the size of one sample, or 0 for unsupported types.
func (p PixelType) BytesPerSample() int {
	switch p {
	case Gray8, Bgr24, Bgra32:
		return 1
	case Gray16, Bgr48:
		return 2
	case GrayFloat, BgrFloat, Gray32:
		return 4
	case GrayDouble:
		return 8
	default:
		return 0
	}
}

// Samples returns the number of interleaved samples per pixel.
func (p PixelType) Samples() int {
	switch p {
	case Bgr24, Bgr48, BgrFloat:
		return 3
	case Bgra32:
		return 4
	default:
		return 1
	}
}

// PixelBytes returns the number of bytes per pixel.
func (p PixelType) PixelBytes() int {
	return p.BytesPerSample() * p.Samples()
}

// IsRGB reports whether the type stores color samples.
func (p PixelType) IsRGB() bool {
	return p.Samples() > 1
}

// Validate returns ErrUnsupportedPixelType for complex and unknown types.
func (p PixelType) Validate() error {
	if p.BytesPerSample() == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedPixelType, p)
	}
	return nil
}

// Format returns the codec layout of a width x height tile of this type.
func (p PixelType) Format(width, height int) compression.PixelFormat {
	return compression.PixelFormat{
		Width:          width,
		Height:         height,
		BytesPerSample: p.BytesPerSample(),
		Samples:        p.Samples(),
	}
}
