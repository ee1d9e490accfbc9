package hph

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/inference-sim/hawkes/hph/reduce"
	"github.com/inference-sim/hawkes/hph/vec"
)

func closeEnough(a, b float64) bool {
	return scalar.EqualWithinAbsOrRel(a, b, 1e-12, 1e-10)
}

// === Construction ===

func TestConfig_Validate_CollectsEveryProblem(t *testing.T) {
	cfg := Config{EmbeddingDimension: 0, LocationCount: -2, VectorWidth: 3, Flags: 1 << 5}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	e, err := New(NewConfig(0, 5, 0))
	assert.Nil(t, e)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestNew_Accessors(t *testing.T) {
	e := newTestEngine(t, Config{EmbeddingDimension: 3, LocationCount: 7, VectorWidth: 4, Flags: FlagParallel, Threads: 2})

	assert.Equal(t, 3, e.InternalDimension())
	assert.Equal(t, 7, e.LocationCount())
	assert.Equal(t, 4, e.VectorWidth())
	assert.Equal(t, "parallel", e.ReducerName())
	assert.Nil(t, e.PairwiseContributions())
}

func TestNew_DetectsWidthAndThreads(t *testing.T) {
	e := newTestEngine(t, NewConfig(2, 4, 0))

	assert.Equal(t, vec.DetectWidth(), e.VectorWidth())
	assert.Equal(t, "sequential", e.ReducerName())
	assert.Equal(t, reduce.DefaultThreads(), e.threads)
}

func TestClose_ReleasesScheduler(t *testing.T) {
	before := reduce.ActiveHandles()
	e, err := New(NewConfig(1, 3, FlagParallel))
	require.NoError(t, err)
	assert.Equal(t, before+1, reduce.ActiveHandles())

	e.Close()
	e.Close()
	assert.Equal(t, before, reduce.ActiveHandles())
}

// === Contract violations ===

func TestContract_LengthAndIndexChecks(t *testing.T) {
	e := newTestEngine(t, NewConfig(2, 4, 0))

	assert.True(t, errors.Is(e.SetParameters(make([]float64, 5)), ErrLengthMismatch))
	assert.True(t, errors.Is(e.SetTimestamps(make([]float64, 3)), ErrLengthMismatch))
	assert.True(t, errors.Is(e.UpdateLocations(AllLocations, make([]float64, 7)), ErrLengthMismatch))
	assert.True(t, errors.Is(e.UpdateLocations(1, make([]float64, 3)), ErrLengthMismatch))
	assert.True(t, errors.Is(e.UpdateLocations(4, make([]float64, 2)), ErrIndexOutOfRange))
	assert.True(t, errors.Is(e.UpdateLocations(-2, make([]float64, 2)), ErrIndexOutOfRange))
	assert.True(t, errors.Is(e.LogLikelihoodGradient(make([]float64, 7)), ErrLengthMismatch))
}

func TestContract_EvaluationRequiresCompleteState(t *testing.T) {
	e := newTestEngine(t, NewConfig(1, 3, 0))

	_, err := e.SumOfLikContribs()
	assert.True(t, errors.Is(err, ErrStateIncomplete), "no locations")

	require.NoError(t, e.UpdateLocations(0, []float64{0}))
	require.NoError(t, e.UpdateLocations(1, []float64{1}))
	_, err = e.SumOfLikContribs()
	assert.True(t, errors.Is(err, ErrStateIncomplete), "two of three locations")

	require.NoError(t, e.UpdateLocations(2, []float64{2}))
	_, err = e.SumOfLikContribs()
	assert.True(t, errors.Is(err, ErrStateIncomplete), "no timestamps")

	require.NoError(t, e.SetTimestamps([]float64{0, 1, 2}))
	assert.True(t, errors.Is(e.LogLikelihoodGradient(make([]float64, ParameterCount)), ErrStateIncomplete), "no parameters")

	require.NoError(t, e.SetParameters(testParameters))
	_, err = e.SumOfLikContribs()
	assert.NoError(t, err)
}

func TestContract_FailedCallLeavesStateUntouched(t *testing.T) {
	e, ev := loadedEngine(t, NewConfig(2, 6, FlagPairCache), 1)
	ll := mustLogLikelihood(t, e)

	require.Error(t, e.UpdateLocations(2, []float64{1, 2, 3}))
	require.Error(t, e.SetParameters([]float64{1}))

	assert.Equal(t, ev.Locations, e.Locations())
	assert.Equal(t, -1, e.UpdatedIndex())
	assert.Equal(t, ll, mustLogLikelihood(t, e))
}

// === Equivalence across strategies ===

func TestEquivalence_SequentialParallel(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 16, 17} {
		for _, threads := range []int{1, 2, 3, 8} {
			t.Run(fmt.Sprintf("N%d/T%d", n, threads), func(t *testing.T) {
				seq, ev := loadedEngine(t, NewConfig(2, n, 0), int64(n))
				par := newTestEngine(t, Config{EmbeddingDimension: 2, LocationCount: n, Flags: FlagParallel, Threads: threads})
				loadState(t, par, ev.Locations, ev.Times, testParameters)

				llSeq, llPar := mustLogLikelihood(t, seq), mustLogLikelihood(t, par)
				assert.True(t, closeEnough(llSeq, llPar), "log-likelihood %v vs %v", llSeq, llPar)
				assert.True(t, floats.EqualFunc(seq.LikContribs(), par.LikContribs(), closeEnough), "per-event terms")
				assert.True(t, floats.EqualFunc(mustGradient(t, seq), mustGradient(t, par), closeEnough), "gradient")
			})
		}
	}
}

func TestEquivalence_VectorWidths(t *testing.T) {
	for _, n := range []int{1, 3, 7, 16, 17} {
		scalarEngine, ev := loadedEngine(t, Config{EmbeddingDimension: 3, LocationCount: n, VectorWidth: 1}, int64(100+n))
		wantLL := mustLogLikelihood(t, scalarEngine)
		wantGrad := mustGradient(t, scalarEngine)

		for _, width := range []int{2, 4, 8} {
			t.Run(fmt.Sprintf("N%d/w%d", n, width), func(t *testing.T) {
				batched := newTestEngine(t, Config{EmbeddingDimension: 3, LocationCount: n, VectorWidth: width})
				loadState(t, batched, ev.Locations, ev.Times, testParameters)

				assert.True(t, closeEnough(wantLL, mustLogLikelihood(t, batched)))
				assert.True(t, floats.EqualFunc(wantGrad, mustGradient(t, batched), closeEnough))
			})
		}
	}
}

func TestEquivalence_PairCacheMatchesLive(t *testing.T) {
	for dim := 1; dim <= 3; dim++ {
		t.Run(fmt.Sprintf("D%d", dim), func(t *testing.T) {
			live, ev := loadedEngine(t, NewConfig(dim, 13, 0), int64(dim))
			cached := newTestEngine(t, NewConfig(dim, 13, FlagPairCache))
			loadState(t, cached, ev.Locations, ev.Times, testParameters)

			assert.Equal(t, mustLogLikelihood(t, live), mustLogLikelihood(t, cached))
			assert.Equal(t, mustGradient(t, live), mustGradient(t, cached))
		})
	}
}

func TestDeterminism_RepeatedEvaluation(t *testing.T) {
	for _, fc := range flagCombinations {
		t.Run(fc.name, func(t *testing.T) {
			cfg := Config{EmbeddingDimension: 2, LocationCount: 21, Flags: fc.flags, Threads: 4}
			a, _ := loadedEngine(t, cfg, 9)
			b, _ := loadedEngine(t, cfg, 9)

			first := mustLogLikelihood(t, a)
			assert.Equal(t, first, mustLogLikelihood(t, a))
			assert.Equal(t, first, mustLogLikelihood(t, b))
			assert.Equal(t, mustGradient(t, a), mustGradient(t, b))
		})
	}
}

// === Edge cases ===

func TestSingleEvent_OnlyBackgroundCompensator(t *testing.T) {
	e := newTestEngine(t, NewConfig(1, 1, 0))
	loadState(t, e, []float64{0.3}, []float64{2.5}, testParameters)

	p := ParametersFromSlice(testParameters)
	want := -p.Mu0 * (cdf(0) - cdf(-p.TauTprec*2.5))
	ll := mustLogLikelihood(t, e)
	assert.InDelta(t, want, ll, 1e-14)
	assert.Equal(t, []float64{ll}, e.LikContribs())
	for _, g := range mustGradient(t, e) {
		assert.False(t, math.IsNaN(g))
	}
}

func TestHigherDimension_AddsNormalizer(t *testing.T) {
	// Identical projections onto one axis differ only by N(D-1)·log(1/√(2π)).
	locations := []float64{0, 0, 1, 0, 3, 0}
	times := []float64{0.5, 1, 2}
	line := newTestEngine(t, NewConfig(1, 3, 0))
	loadState(t, line, []float64{0, 1, 3}, times, []float64{1, 1, 1, 1, 0.5, 1})
	plane := newTestEngine(t, NewConfig(2, 3, 0))
	loadState(t, plane, locations, times, []float64{1, 1, 1, 1, 0.5, 1})

	diff := mustLogLikelihood(t, plane) - mustLogLikelihood(t, line)
	assert.InDelta(t, 3*logNormalizer, diff, 1e-12)
}

// === Observability ===

func TestMetrics_CountsEvaluationsAndTransactions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	e, ev := loadedEngine(t, NewConfig(2, 5, 0), 4, WithMetrics(m))

	mustLogLikelihood(t, e)
	e.StoreState()
	require.NoError(t, e.UpdateLocations(1, ev.Location(0)))
	mustLogLikelihood(t, e)
	mustGradient(t, e)
	e.RestoreState()
	e.StoreState()
	e.AcceptState()

	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.Evaluations.WithLabelValues(kindLikelihood, "sequential")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Evaluations.WithLabelValues(kindGradient, "sequential")))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.Transactions.WithLabelValues("store")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Transactions.WithLabelValues("restore")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Transactions.WithLabelValues("accept")))
	assert.Equal(t, 2, promtestutil.CollectAndCount(m.Duration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.transaction("store")
	m.observe(kindLikelihood, "sequential", time.Now())
}
