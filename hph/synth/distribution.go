package synth

import (
	"math"
	"math/rand"
)

// PoissonSampler draws non-negative counts with the given mean.
type PoissonSampler struct {
	mean float64
}

// Sample uses Knuth's multiplication method, adequate for the small means
// (branching ratios below one) used by the generator.
func (s *PoissonSampler) Sample(rng *rand.Rand) int {
	if s.mean <= 0 {
		return 0
	}
	limit := math.Exp(-s.mean)
	count := 0
	product := rng.Float64()
	for product > limit {
		count++
		product *= rng.Float64()
	}
	return count
}

// ExponentialSampler draws waiting times with the given rate.
type ExponentialSampler struct {
	rate float64
}

func (s *ExponentialSampler) Sample(rng *rand.Rand) float64 {
	return rng.ExpFloat64() / s.rate
}

// GaussianSampler draws isotropic points around a center.
type GaussianSampler struct {
	stdDev float64
}

// SampleAround writes center + N(0, stdDev²·I) into out.
func (s *GaussianSampler) SampleAround(rng *rand.Rand, center, out []float64) {
	for k := range out {
		out[k] = center[k] + rng.NormFloat64()*s.stdDev
	}
}
