package czi

import (
	"runtime"
	"sync"
)

// ParallelConfig controls how tile decodes are spread over goroutines.
type ParallelConfig struct {
	// NumWorkers is the number of goroutines. 0 means runtime.GOMAXPROCS(0).
	NumWorkers int

	// GrainSize is the minimum number of tiles per worker. Smaller batches
	// run on the calling goroutine.
	GrainSize int
}

// DefaultParallelConfig uses every CPU and parallelizes from two tiles up.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{NumWorkers: 0, GrainSize: 1}
}

var (
	parallelConfig   = DefaultParallelConfig()
	parallelConfigMu sync.RWMutex
)

// SetParallelConfig sets the package default used by readers that do not
// override workers in their Options.
func SetParallelConfig(config ParallelConfig) {
	parallelConfigMu.Lock()
	defer parallelConfigMu.Unlock()
	parallelConfig = config
}

// GetParallelConfig returns the package default.
func GetParallelConfig() ParallelConfig {
	parallelConfigMu.RLock()
	defer parallelConfigMu.RUnlock()
	return parallelConfig
}

func (c ParallelConfig) workers() int {
	if c.NumWorkers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.NumWorkers
}

func (c ParallelConfig) grain() int {
	return max(c.GrainSize, 1)
}

func (c ParallelConfig) sequential(n int) bool {
	return c.workers() == 1 || n < 2 || n <= c.grain()
}

// ParallelFor runs fn(i) for i in [0, n).
func ParallelFor(config ParallelConfig, n int, fn func(i int)) {
	_ = ParallelForWithError(config, n, func(i int) error {
		fn(i)
		return nil
	})
}

// ParallelForWithError runs fn(i) for i in [0, n) in contiguous chunks, one
// per worker. It returns the first error observed; other chunks stop at
// their next item.
func ParallelForWithError(config ParallelConfig, n int, fn func(i int) error) error {
	if config.sequential(n) {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	numWorkers := min(config.workers(), (n+config.grain()-1)/config.grain())
	chunkSize := (n + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	var errOnce sync.Once
	var firstErr error
	stop := make(chan struct{})

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				select {
				case <-stop:
					return
				default:
				}
				if err := fn(i); err != nil {
					errOnce.Do(func() {
						firstErr = err
						close(stop)
					})
					return
				}
			}
		}(start, end)
	}

	wg.Wait()
	return firstErr
}
