package hph

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/inference-sim/hawkes/hph/trace"
)

func TestRestore_RoundTrip(t *testing.T) {
	for _, fc := range flagCombinations {
		t.Run(fc.name, func(t *testing.T) {
			e, ev := loadedEngine(t, Config{EmbeddingDimension: 2, LocationCount: 12, Flags: fc.flags, Threads: 3}, 21)
			ll := mustLogLikelihood(t, e)
			terms := e.LikContribs()
			grad := mustGradient(t, e)

			e.StoreState()
			require.NoError(t, e.UpdateLocations(4, []float64{5, -5}))
			require.NoError(t, e.SetParameters([]float64{1, 1, 1, 1, 0.1, 0.1}))
			proposed := mustLogLikelihood(t, e)
			assert.NotEqual(t, ll, proposed)

			e.RestoreState()
			assert.Equal(t, ev.Locations, e.Locations())
			assert.Equal(t, testParameters, e.Parameters().Slice())
			assert.Equal(t, terms, e.LikContribs(), "terms restored before re-evaluation")

			assert.Equal(t, ll, mustLogLikelihood(t, e))
			assert.Equal(t, terms, e.LikContribs())
			assert.Equal(t, grad, mustGradient(t, e))
		})
	}
}

// assertMatchesFresh scores e's current state with a new uncached engine.
func assertMatchesFresh(t *testing.T, e *Engine, times []float64, step string) {
	t.Helper()
	fresh := newTestEngine(t, NewConfig(e.InternalDimension(), e.LocationCount(), 0))
	loadState(t, fresh, e.Locations(), times, e.Parameters().Slice())

	want, got := mustLogLikelihood(t, fresh), mustLogLikelihood(t, e)
	assert.True(t, closeEnough(want, got), "%s: log-likelihood %v, want %v", step, got, want)
	assert.True(t, floats.EqualFunc(mustGradient(t, fresh), mustGradient(t, e), closeEnough), "%s: gradient", step)
}

func TestRestore_TwiceWithoutStore(t *testing.T) {
	for _, fc := range flagCombinations {
		t.Run(fc.name, func(t *testing.T) {
			e, ev := loadedEngine(t, Config{EmbeddingDimension: 2, LocationCount: 12, Flags: fc.flags, Threads: 3}, 21)
			mustLogLikelihood(t, e)

			e.StoreState()
			require.NoError(t, e.UpdateLocations(2, []float64{9, 9}))
			mustLogLikelihood(t, e)

			e.RestoreState()
			assertMatchesFresh(t, e, ev.Times, "first restore")

			// GIVEN no new snapshot, a second restore swaps the generations back
			e.RestoreState()
			assertMatchesFresh(t, e, ev.Times, "second restore")
		})
	}
}

func TestRestore_UpdateBetweenRestores(t *testing.T) {
	for _, fc := range flagCombinations {
		t.Run(fc.name, func(t *testing.T) {
			e, ev := loadedEngine(t, Config{EmbeddingDimension: 2, LocationCount: 12, Flags: fc.flags, Threads: 3}, 22)
			mustLogLikelihood(t, e)

			e.StoreState()
			require.NoError(t, e.UpdateLocations(2, []float64{9, 9}))
			mustLogLikelihood(t, e)
			e.RestoreState()

			require.NoError(t, e.UpdateLocations(5, []float64{-4, 3}))
			assertMatchesFresh(t, e, ev.Times, "update after restore")

			e.RestoreState()
			assertMatchesFresh(t, e, ev.Times, "second restore")
		})
	}
}

func TestRestore_WithoutEvaluation(t *testing.T) {
	e, ev := loadedEngine(t, NewConfig(3, 8, FlagPairCache), 2)
	ll := mustLogLikelihood(t, e)

	e.StoreState()
	require.NoError(t, e.UpdateLocations(6, []float64{1, 1, 1}))
	e.RestoreState()

	assert.Equal(t, ev.Locations, e.Locations())
	assert.Equal(t, ll, mustLogLikelihood(t, e))
}

func TestAccept_KeepsProposal(t *testing.T) {
	for _, fc := range flagCombinations {
		t.Run(fc.name, func(t *testing.T) {
			e, ev := loadedEngine(t, Config{EmbeddingDimension: 2, LocationCount: 9, Flags: fc.flags, Threads: 2}, 8)
			mustLogLikelihood(t, e)

			e.StoreState()
			require.NoError(t, e.UpdateLocations(3, []float64{0.25, -0.75}))
			proposed := mustLogLikelihood(t, e)
			e.AcceptState()

			want := append([]float64(nil), ev.Locations...)
			want[6], want[7] = 0.25, -0.75
			assert.Equal(t, want, e.Locations())
			assert.Equal(t, proposed, mustLogLikelihood(t, e))

			fresh := newTestEngine(t, NewConfig(2, 9, 0))
			loadState(t, fresh, want, ev.Times, testParameters)
			assert.True(t, closeEnough(proposed, mustLogLikelihood(t, fresh)))
		})
	}
}

func TestAccept_MirrorsPairCacheRow(t *testing.T) {
	e, _ := loadedEngine(t, NewConfig(3, 10, FlagPairCache), 5)
	mustLogLikelihood(t, e)

	e.StoreState()
	require.NoError(t, e.UpdateLocations(7, []float64{2, 0, -1}))
	mustLogLikelihood(t, e)
	e.AcceptState()

	m := e.PairwiseContributions()
	require.NotNil(t, m)
	locations := e.Locations()
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			assert.Equal(t, m.At(i, j), m.At(j, i), "asymmetric at (%d, %d)", i, j)
			assert.InDelta(t, euclidean(locations, 3, i, j), m.At(i, j), 1e-12)
		}
	}
}

func TestUpdatedIndex_Lifecycle(t *testing.T) {
	e := newTestEngine(t, NewConfig(1, 4, 0))
	assert.Equal(t, -1, e.UpdatedIndex())

	require.NoError(t, e.UpdateLocations(AllLocations, []float64{0, 1, 2, 3}))
	assert.Equal(t, -1, e.UpdatedIndex())
	assert.True(t, e.fullRecompute)

	e.StoreState()
	assert.False(t, e.fullRecompute)

	require.NoError(t, e.UpdateLocations(2, []float64{5}))
	assert.Equal(t, 2, e.UpdatedIndex())
	require.NoError(t, e.UpdateLocations(2, []float64{6}))
	assert.Equal(t, 2, e.UpdatedIndex(), "same index twice stays single")

	require.NoError(t, e.UpdateLocations(1, []float64{7}))
	assert.Equal(t, -1, e.UpdatedIndex(), "second index escalates")
	assert.True(t, e.fullRecompute)

	require.NoError(t, e.UpdateLocations(3, []float64{8}))
	assert.Equal(t, -1, e.UpdatedIndex(), "escalation is sticky")

	e.RestoreState()
	assert.Equal(t, -1, e.UpdatedIndex())
	assert.False(t, e.fullRecompute)

	e.StoreState()
	require.NoError(t, e.UpdateLocations(0, []float64{9}))
	e.AcceptState()
	assert.Equal(t, -1, e.UpdatedIndex())
	assert.False(t, e.fullRecompute)
}

func TestAccept_WithoutStoreIsNoop(t *testing.T) {
	e := newTestEngine(t, NewConfig(1, 3, FlagPairCache))
	require.NoError(t, e.UpdateLocations(0, []float64{1}))
	assert.Equal(t, 0, e.UpdatedIndex())

	e.AcceptState()
	assert.Equal(t, 0, e.UpdatedIndex(), "pending index survives")
}

func TestMakeDirty_ForcesFullRecompute(t *testing.T) {
	e, _ := loadedEngine(t, NewConfig(2, 6, FlagPairCache), 12)
	ll := mustLogLikelihood(t, e)

	e.StoreState()
	require.NoError(t, e.UpdateLocations(1, []float64{0, 0}))
	e.MakeDirty()
	assert.Equal(t, -1, e.UpdatedIndex())
	assert.False(t, e.pairs.valid)

	e.RestoreState()
	assert.Equal(t, ll, mustLogLikelihood(t, e))
}

// TestTransactions_RandomWalk drives a sampler-like sequence of proposals and
// decisions, comparing every evaluation with a fresh engine built from the
// same state.
func TestTransactions_RandomWalk(t *testing.T) {
	const (
		dim   = 2
		n     = 11
		steps = 300
	)
	for _, fc := range flagCombinations {
		t.Run(fc.name, func(t *testing.T) {
			e, ev := loadedEngine(t, Config{EmbeddingDimension: dim, LocationCount: n, Flags: fc.flags, Threads: 3}, 31)
			reference := newTestEngine(t, NewConfig(dim, n, 0))
			require.NoError(t, reference.SetTimestamps(ev.Times))

			check := func(step int) {
				require.NoError(t, reference.UpdateLocations(AllLocations, e.Locations()))
				require.NoError(t, reference.SetParameters(e.Parameters().Slice()))
				want := mustLogLikelihood(t, reference)
				got := mustLogLikelihood(t, e)
				require.True(t, closeEnough(want, got), "step %d: log-likelihood %v, want %v", step, got, want)
				require.True(t, floats.EqualFunc(mustGradient(t, reference), mustGradient(t, e), closeEnough), "step %d: gradient", step)
			}

			rng := rand.New(rand.NewSource(99))
			check(-1)
			for step := 0; step < steps; step++ {
				e.StoreState()
				switch rng.Intn(4) {
				case 0, 1:
					k := rng.Intn(n)
					require.NoError(t, e.UpdateLocations(k, jitter(rng, e.Locations()[k*dim:(k+1)*dim])))
				case 2:
					for moves := 2 + rng.Intn(2); moves > 0; moves-- {
						k := rng.Intn(n)
						require.NoError(t, e.UpdateLocations(k, jitter(rng, e.Locations()[k*dim:(k+1)*dim])))
					}
				default:
					require.NoError(t, e.SetParameters(jitter(rng, e.Parameters().Slice())))
				}
				if rng.Intn(3) > 0 {
					check(step)
				}
				if rng.Intn(2) == 0 {
					e.AcceptState()
				} else {
					e.RestoreState()
				}
				check(step)
			}
		})
	}
}

func TestTrace_RecordsTransactions(t *testing.T) {
	recorder := trace.NewRecorder(trace.TraceLevelTransactions)
	e, _ := loadedEngine(t, NewConfig(2, 5, FlagPairCache), 6, WithTrace(recorder))
	mustLogLikelihood(t, e)

	e.StoreState()
	require.NoError(t, e.UpdateLocations(1, []float64{0, 1}))
	mustLogLikelihood(t, e)
	e.AcceptState()
	e.StoreState()
	require.NoError(t, e.UpdateLocations(2, []float64{1, 0}))
	e.RestoreState()

	ops := make([]trace.Op, 0, len(recorder.Records))
	for _, rec := range recorder.Records {
		ops = append(ops, rec.Op)
	}
	assert.Equal(t, []trace.Op{
		trace.OpUpdate, trace.OpStore, trace.OpUpdate, trace.OpAccept,
		trace.OpStore, trace.OpUpdate, trace.OpRestore,
	}, ops)

	summary := trace.Summarize(recorder)
	assert.Equal(t, 1, summary.FullUpdates)
	assert.Equal(t, 2, summary.SingleIndexUpdates)
	assert.Equal(t, 1, summary.MirroredAccepts)
	assert.Equal(t, 0.5, summary.AcceptanceRate)
	assert.Equal(t, 2, recorder.Records[len(recorder.Records)-1].UpdatedIndex)
}

func jitter(rng *rand.Rand, values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * math.Exp(0.1*rng.NormFloat64())
	}
	return out
}

func euclidean(locations []float64, dim, i, j int) float64 {
	var sum float64
	for k := 0; k < dim; k++ {
		d := locations[i*dim+k] - locations[j*dim+k]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func TestRestore_SingleUpdateRevertsCacheRow(t *testing.T) {
	e, _ := loadedEngine(t, NewConfig(2, 7, FlagPairCache), 14)
	mustLogLikelihood(t, e)
	before := e.PairwiseContributions()

	e.StoreState()
	require.NoError(t, e.UpdateLocations(5, []float64{10, 10}))
	mustLogLikelihood(t, e)
	e.RestoreState()

	after := e.PairwiseContributions()
	for i := 0; i < 7; i++ {
		for j := 0; j < 7; j++ {
			assert.Equal(t, before.At(i, j), after.At(i, j), fmt.Sprintf("(%d, %d)", i, j))
		}
	}
	assert.True(t, e.pairs.valid)
}
