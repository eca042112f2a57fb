package compression

import (
	"crypto/sha256"
	"sync"
	"testing"
)

// TestConcurrentDecodeDeterminism verifies that one dispatcher decoding the
// same payload from many goroutines always produces identical output.
func TestConcurrentDecodeDeterminism(t *testing.T) {
	d := newTestDispatcher(t, nil)
	f := PixelFormat{Width: 64, Height: 64, BytesPerSample: 2, Samples: 1}

	src := make([]byte, f.Size())
	for i := range src {
		src[i] = byte(i % 61)
	}
	hilo := make([]byte, 0, len(src))
	for i := 0; i < len(src); i += 2 {
		hilo = append(hilo, src[i])
	}
	for i := 1; i < len(src); i += 2 {
		hilo = append(hilo, src[i])
	}
	payloads := map[Tag][]byte{
		Zstd0: zstdCompress(t, src),
		Zstd1: append([]byte{3, zstd1ChunkHiLo, 1}, zstdCompress(t, hilo)...),
	}
	want := sha256.Sum256(src)

	for tag, payload := range payloads {
		var wg sync.WaitGroup
		sums := make([][32]byte, 16)
		errs := make([]error, len(sums))
		for i := range sums {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out, err := d.Decode(tag, payload, f)
				errs[i] = err
				sums[i] = sha256.Sum256(out)
			}(i)
		}
		wg.Wait()
		for i := range sums {
			if errs[i] != nil {
				t.Fatalf("%s decode %d: %v", tag, i, errs[i])
			}
			if sums[i] != want {
				t.Errorf("%s decode %d differs from source", tag, i)
			}
		}
	}
}
