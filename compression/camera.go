package compression

import (
	"errors"
)

// ErrCameraTruncated is returned when a packed camera payload holds fewer
// nibbles than the tile requires.
var ErrCameraTruncated = errors.New("compression: truncated packed camera data")

// Camera504Decompress unpacks 12-bit camera samples. The payload is a
// stream of 4-bit nibbles, three per sample; within every group of six
// nibbles starting at nibble 2 the nibbles are rotated before packing. The
// result holds little-endian 16-bit samples.
func Camera504Decompress(src []byte, f PixelFormat) ([]byte, error) {
	return unpack12Bit(src, f.Size())
}

// Camera104Decompress unpacks like Camera504Decompress and then reverses
// the pixel order of every row.
func Camera104Decompress(src []byte, f PixelFormat) ([]byte, error) {
	dst, err := unpack12Bit(src, f.Size())
	if err != nil {
		return nil, err
	}
	reverseColumns(dst, f.Width, f.Height, f.PixelBytes())
	return dst, nil
}

func unpack12Bit(src []byte, size int) ([]byte, error) {
	nibbles := make([]byte, (size/2)*3)
	if len(src)*2 < len(nibbles) {
		return nil, ErrCameraTruncated
	}
	for i := range nibbles {
		b := src[i/2]
		if i%2 == 0 {
			nibbles[i] = b >> 4
		} else {
			nibbles[i] = b & 0x0F
		}
	}

	for i := 3; i < len(nibbles)-1; i += 6 {
		first, middle, last := nibbles[i-1], nibbles[i], nibbles[i+1]
		nibbles[i-1] = last
		nibbles[i] = first
		nibbles[i+1] = middle
	}

	// Samples come out big-endian: a lone high nibble, then two nibbles.
	dst := make([]byte, size)
	cur := 0
	for i := 0; i < len(nibbles) && cur < size; {
		if i%3 == 0 {
			dst[cur] = nibbles[i]
			i++
		} else {
			dst[cur] = nibbles[i]<<4 | nibbles[i+1]
			i += 2
		}
		cur++
	}

	for i := 0; i+1 < size; i += 2 {
		dst[i], dst[i+1] = dst[i+1], dst[i]
	}
	return dst, nil
}

func reverseColumns(buf []byte, width, height, pixelBytes int) {
	rowLen := width * pixelBytes
	for y := 0; y < height; y++ {
		row := buf[y*rowLen : (y+1)*rowLen]
		for l, r := 0, width-1; l < r; l, r = l+1, r-1 {
			lo, ro := l*pixelBytes, r*pixelBytes
			for b := 0; b < pixelBytes; b++ {
				row[lo+b], row[ro+b] = row[ro+b], row[lo+b]
			}
		}
	}
}
