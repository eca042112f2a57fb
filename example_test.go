package czi_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mrjoshuak/go-czi/compression"
	"github.com/mrjoshuak/go-czi/czi"
)

// Example_basicRead demonstrates reading a region of the first plane.
func Example_basicRead() {
	r, err := czi.Open("slide.czi", czi.DefaultOptions())
	if err != nil {
		fmt.Println("Error opening CZI:", err)
		return
	}
	defer r.Close()

	lv := r.CurrentLevel()
	fmt.Printf("Series: %d, size: %dx%d, pixel type: %s\n",
		r.SeriesCount(), lv.Width, lv.Height, r.CurrentSeries().PixelType)

	buf, err := r.OpenBytes(context.Background(), 0, 0, 0, min(lv.Width, 512), min(lv.Height, 512))
	if err != nil {
		fmt.Println("Error reading region:", err)
		return
	}
	fmt.Printf("Read %d bytes\n", len(buf))
}

// Example_pyramid walks the resolution levels of every series.
func Example_pyramid() {
	r, err := czi.Open("slide.czi", czi.DefaultOptions())
	if err != nil {
		fmt.Println("Error opening CZI:", err)
		return
	}
	defer r.Close()

	for _, s := range r.AllSeries() {
		for i, lv := range s.Levels {
			fmt.Printf("series %d level %d: %dx%d (1/%d), %d tiles\n",
				s.Index, i, lv.Width, lv.Height, lv.Downscale, len(lv.Entries))
		}
	}
}

// Example_concurrentReaders shares one tile cache between goroutines.
func Example_concurrentReaders() {
	r, err := czi.Open("slide.czi", czi.DefaultOptions())
	if err != nil {
		fmt.Println("Error opening CZI:", err)
		return
	}
	defer r.Close()

	s := r.CurrentSeries()
	var wg sync.WaitGroup
	for no := 0; no < s.ImageCount(); no++ {
		d, err := r.Dup()
		if err != nil {
			fmt.Println("Error duplicating reader:", err)
			return
		}
		wg.Add(1)
		go func(no int) {
			defer wg.Done()
			defer d.Close()
			key, _ := s.PlaneKey(no)
			if _, err := d.ReadPlane(context.Background(), s.Index, s.ResolutionCount()-1, key); err != nil {
				fmt.Println("Error reading plane:", err)
			}
		}(no)
	}
	wg.Wait()
	fmt.Printf("Cache: %+v\n", r.CacheStats())
}

// Example_options configures the reader from YAML and plugs in a JPEG-XR
// decoder.
func Example_options() {
	opts, err := czi.ParseOptions([]byte("cacheBytes: 67108864\nfillValue: 255\nrgbOrder: true\n"))
	if err != nil {
		fmt.Println("Error parsing options:", err)
		return
	}
	opts.Logger = zerolog.New(zerolog.NewConsoleWriter()).Level(zerolog.WarnLevel)
	opts.JXR = compression.JXRDecoderFunc(func(src []byte, f compression.PixelFormat) ([]byte, error) {
		return nil, fmt.Errorf("no JPEG-XR support in this build")
	})

	r, err := czi.Open("slide.czi", opts)
	if err != nil {
		fmt.Println("Error opening CZI:", err)
		return
	}
	defer r.Close()
}
