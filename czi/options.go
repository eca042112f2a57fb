package czi

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mrjoshuak/go-czi/compression"
)

// DefaultCacheBytes is the default decoded-tile cache ceiling.
const DefaultCacheBytes = 256 << 20

// Options configures how a file is indexed and read.
type Options struct {
	// Autostitch merges mosaic tiles of a scene into one series.
	Autostitch bool `yaml:"autostitch"`

	// CacheBytes bounds the decoded-tile cache. 0 disables retention.
	CacheBytes int64 `yaml:"cacheBytes"`

	// FillValue is written to region pixels no tile covers.
	FillValue byte `yaml:"fillValue"`

	// RGBOrder returns color samples as R, G, B instead of B, G, R.
	RGBOrder bool `yaml:"rgbOrder"`

	// Workers and GrainSize control parallel tile decoding. Zero values
	// fall back to the package default.
	Workers   int `yaml:"workers"`
	GrainSize int `yaml:"grainSize"`

	// PoolBytes limits payload buffers borrowed from the pool. 0 means
	// no limit.
	PoolBytes int64 `yaml:"poolBytes"`

	// PartPaths lists files holding parts 1..n of a multi-part file.
	PartPaths []string `yaml:"partPaths"`

	// LogLevel is applied to Logger when set.
	LogLevel string `yaml:"logLevel"`

	Logger zerolog.Logger          `yaml:"-"`
	JXR    compression.JXRDecoder `yaml:"-"`
}

// DefaultOptions returns options with autostitching on and a 256 MiB cache.
func DefaultOptions() Options {
	return Options{
		Autostitch: true,
		CacheBytes: DefaultCacheBytes,
		Logger:     zerolog.Nop(),
	}
}

// ParseOptions decodes YAML over DefaultOptions.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("czi: parsing options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// LoadOptions reads a YAML options file.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}
	return ParseOptions(data)
}

// Validate checks option ranges and applies LogLevel to Logger.
func (o *Options) Validate() error {
	var errs []error
	if o.CacheBytes < 0 {
		errs = append(errs, fmt.Errorf("cacheBytes must not be negative: %d", o.CacheBytes))
	}
	if o.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative: %d", o.Workers))
	}
	if o.GrainSize < 0 {
		errs = append(errs, fmt.Errorf("grainSize must not be negative: %d", o.GrainSize))
	}
	if o.PoolBytes < 0 {
		errs = append(errs, fmt.Errorf("poolBytes must not be negative: %d", o.PoolBytes))
	}
	if o.LogLevel != "" {
		lvl, err := zerolog.ParseLevel(o.LogLevel)
		if err != nil {
			errs = append(errs, fmt.Errorf("logLevel: %w", err))
		} else {
			o.Logger = o.Logger.Level(lvl)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("czi: invalid options: %w", errors.Join(errs...))
	}
	return nil
}

func (o *Options) parallelConfig() ParallelConfig {
	cfg := GetParallelConfig()
	if o.Workers > 0 {
		cfg.NumWorkers = o.Workers
	}
	if o.GrainSize > 0 {
		cfg.GrainSize = o.GrainSize
	}
	return cfg
}
