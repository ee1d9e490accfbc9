package hph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inference-sim/hawkes/hph/synth"
)

// testParameters is a moderately self-exciting kernel used across tests.
var testParameters = []float64{2.0, 0.6, 0.4, 1.3, 0.5, 1.5}

// newTestEngine builds an engine and closes it when the test ends.
func newTestEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

// syntheticEvents draws n events in dim dimensions from a fixed seed.
func syntheticEvents(t *testing.T, dim, n int, seed int64) *synth.Events {
	t.Helper()
	ev, err := synth.DefaultProcess(dim).Generate(synth.NewPartitionedRNG(seed), n)
	require.NoError(t, err)
	return ev
}

// loadState sets locations, times and parameters in one go.
func loadState(t *testing.T, e *Engine, locations, times, params []float64) {
	t.Helper()
	require.NoError(t, e.UpdateLocations(AllLocations, locations))
	require.NoError(t, e.SetTimestamps(times))
	require.NoError(t, e.SetParameters(params))
}

// loadedEngine builds an engine over synthetic events with testParameters.
func loadedEngine(t *testing.T, cfg Config, seed int64, opts ...Option) (*Engine, *synth.Events) {
	t.Helper()
	ev := syntheticEvents(t, cfg.EmbeddingDimension, cfg.LocationCount, seed)
	e := newTestEngine(t, cfg, opts...)
	loadState(t, e, ev.Locations, ev.Times, testParameters)
	return e, ev
}

func mustLogLikelihood(t *testing.T, e *Engine) float64 {
	t.Helper()
	ll, err := e.SumOfLikContribs()
	require.NoError(t, err)
	return ll
}

func mustGradient(t *testing.T, e *Engine) []float64 {
	t.Helper()
	grad := make([]float64, ParameterCount)
	require.NoError(t, e.LogLikelihoodGradient(grad))
	return grad
}

// flagCombinations enumerates every optional-behavior setting.
var flagCombinations = []struct {
	name  string
	flags Flags
}{
	{"sequential", 0},
	{"parallel", FlagParallel},
	{"sequential+cache", FlagPairCache},
	{"parallel+cache", FlagParallel | FlagPairCache},
}
