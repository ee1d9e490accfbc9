package hph

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/inference-sim/hawkes/hph/vec"
)

// Flags select optional engine behavior at construction.
type Flags int64

const (
	// FlagParallel reduces per-event contributions on a bounded worker pool.
	FlagParallel Flags = 1 << iota
	// FlagPairCache keeps an N×N matrix of pairwise distances that is
	// refreshed row-wise after single-location updates.
	FlagPairCache
)

// Has reports whether every bit of f is set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

// Config groups the construction-time engine settings.
type Config struct {
	EmbeddingDimension int   // D, coordinates per location (must be >= 1)
	LocationCount      int   // N, number of events (must be >= 1)
	Flags              Flags // FlagParallel, FlagPairCache
	Threads            int   // worker count for FlagParallel; <= 0 uses the hardware default
	VectorWidth        int   // batch width 1, 2, 4 or 8; 0 detects from the CPU
}

// NewConfig creates a Config with hardware-default threads and width.
func NewConfig(embeddingDimension, locationCount int, flags Flags) Config {
	return Config{
		EmbeddingDimension: embeddingDimension,
		LocationCount:      locationCount,
		Flags:              flags,
	}
}

// Validate returns every configuration problem at once.
func (c Config) Validate() error {
	var err error
	if c.EmbeddingDimension < 1 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidConfig, "embedding dimension %d < 1", c.EmbeddingDimension))
	}
	if c.LocationCount < 1 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidConfig, "location count %d < 1", c.LocationCount))
	}
	if c.VectorWidth != 0 && !vec.IsValidWidth(c.VectorWidth) {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidConfig, "vector width %d not in {1, 2, 4, 8}", c.VectorWidth))
	}
	if c.Flags&^(FlagParallel|FlagPairCache) != 0 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidConfig, "unknown flag bits %#x", int64(c.Flags&^(FlagParallel|FlagPairCache))))
	}
	return err
}
