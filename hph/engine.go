package hph

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/inference-sim/hawkes/hph/reduce"
	"github.com/inference-sim/hawkes/hph/trace"
	"github.com/inference-sim/hawkes/hph/vec"
)

// AllLocations is the UpdateLocations index that replaces every point.
const AllLocations = -1

// Engine scores one event set against the Hawkes kernel. Buffers are sized
// once at construction for N events in D dimensions.
type Engine struct {
	dim     int
	n       int
	flags   Flags
	threads int
	width   int

	log               logrus.FieldLogger
	metrics           *Metrics
	recorder          *trace.Recorder
	bandwidthGradient bool

	reducer reduce.Strategy
	sched   *reduce.Handle

	locations    *locationArena
	times        []float64
	params       Parameters
	storedParams Parameters

	// Preconditions for evaluation.
	assigned      []bool
	assignedCount int
	timesSet      bool
	paramsSet     bool

	// Transaction bookkeeping, see state.go.
	hasSnapshot   bool
	updatedIndex  int
	fullRecompute bool

	sumOfLikContribs       float64
	storedSumOfLikContribs float64
	terms                  []float64
	storedTerms            []float64

	pairs    *pairCache
	gradient []float64
}

// New builds an engine for cfg. It returns an error wrapping
// ErrInvalidConfig if cfg is unusable.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		dim:          cfg.EmbeddingDimension,
		n:            cfg.LocationCount,
		flags:        cfg.Flags,
		width:        cfg.VectorWidth,
		threads:      cfg.Threads,
		log:          logrus.StandardLogger().WithField("component", "hph"),
		locations:    newLocationArena(cfg.LocationCount, cfg.EmbeddingDimension),
		times:        make([]float64, cfg.LocationCount),
		assigned:     make([]bool, cfg.LocationCount),
		updatedIndex: -1,
		terms:        make([]float64, cfg.LocationCount),
		storedTerms:  make([]float64, cfg.LocationCount),
		gradient:     make([]float64, ParameterCount),
	}
	for _, opt := range opts {
		opt(e)
	}

	capability := vec.Detect()
	if e.width == 0 {
		e.width = capability.Width
	}
	if e.threads <= 0 {
		e.threads = reduce.DefaultThreads()
	}

	if cfg.Flags.Has(FlagParallel) {
		e.sched = reduce.AcquireScheduler(e.threads)
		e.reducer = reduce.NewParallel(e.sched, e.threads)
		e.log.Infof("Using %d threads", e.threads)
	} else {
		e.reducer = reduce.Sequential{}
	}
	if cfg.Flags.Has(FlagPairCache) {
		e.pairs = newPairCache(e.n)
	}

	e.log.WithFields(logrus.Fields{
		"dimension": e.dim,
		"locations": e.n,
		"reducer":   e.reducer.Name(),
		"width":     e.width,
		"cpu":       capability.Name,
		"pairCache": e.pairs != nil,
	}).Info("Hawkes engine ready")
	return e, nil
}

// Close releases the engine's reference to the shared scheduler. The engine
// must not be used afterwards.
func (e *Engine) Close() {
	if e.sched != nil {
		e.sched.Release()
		e.sched = nil
	}
}

// InternalDimension returns the embedding dimension D.
func (e *Engine) InternalDimension() int { return e.dim }

// LocationCount returns N.
func (e *Engine) LocationCount() int { return e.n }

// VectorWidth returns the batch width used by the pairwise loops.
func (e *Engine) VectorWidth() int { return e.width }

// ReducerName reports the active reduction strategy.
func (e *Engine) ReducerName() string { return e.reducer.Name() }

// Parameters returns the current kernel parameters.
func (e *Engine) Parameters() Parameters { return e.params }

// Locations returns a copy of the active location generation.
func (e *Engine) Locations() []float64 {
	return append([]float64(nil), e.locations.current()...)
}

// SetParameters replaces the six kernel parameters (see ParameterNames).
func (e *Engine) SetParameters(data []float64) error {
	if len(data) != ParameterCount {
		return errors.Wrapf(ErrLengthMismatch, "parameters: got %d values, want %d", len(data), ParameterCount)
	}
	e.params = ParametersFromSlice(data)
	e.paramsSet = true
	return nil
}

// SetTimestamps replaces the N event times. The last element is the
// observation horizon.
func (e *Engine) SetTimestamps(data []float64) error {
	if len(data) != e.n {
		return errors.Wrapf(ErrLengthMismatch, "timestamps: got %d values, want %d", len(data), e.n)
	}
	copy(e.times, data)
	e.timesSet = true
	return nil
}

// SumOfLikContribs returns the log-likelihood of the current state.
func (e *Engine) SumOfLikContribs() (float64, error) {
	if err := e.checkReady(); err != nil {
		return 0, err
	}
	start := time.Now()
	e.sumOfLikContribs = e.computeSumOfLikContribs()
	e.metrics.observe(kindLikelihood, e.reducer.Name(), start)
	return e.sumOfLikContribs, nil
}

// LogLikelihoodGradient writes the gradient of the log-likelihood with
// respect to the six parameters into out, which must have length 6.
func (e *Engine) LogLikelihoodGradient(out []float64) error {
	if len(out) != ParameterCount {
		return errors.Wrapf(ErrLengthMismatch, "gradient buffer: got %d, want %d", len(out), ParameterCount)
	}
	if err := e.checkReady(); err != nil {
		return err
	}
	start := time.Now()
	e.computeLogLikelihoodGradient()
	copy(out, e.gradient)
	e.metrics.observe(kindGradient, e.reducer.Name(), start)
	return nil
}

// LikContribs returns a copy of the per-event log-likelihood terms from the
// last evaluation. The values are stale after any mutation until the next
// SumOfLikContribs call.
func (e *Engine) LikContribs() []float64 {
	return append([]float64(nil), e.terms...)
}

// PairwiseContributions returns a copy of the cached pairwise distance
// matrix, or nil when FlagPairCache is not set.
func (e *Engine) PairwiseContributions() *mat.Dense {
	if e.pairs == nil {
		return nil
	}
	return e.pairs.snapshotMatrix()
}

func (e *Engine) checkReady() error {
	switch {
	case e.assignedCount < e.n:
		return errors.Wrapf(ErrStateIncomplete, "%d of %d locations set", e.assignedCount, e.n)
	case !e.timesSet:
		return errors.Wrap(ErrStateIncomplete, "timestamps not set")
	case !e.paramsSet:
		return errors.Wrap(ErrStateIncomplete, "parameters not set")
	}
	return nil
}

// dispatch returns the distance source for the next evaluation, refreshing
// the pairwise cache first when it is enabled.
func (e *Engine) dispatch() distanceDispatch {
	live := e.live()
	if e.pairs == nil {
		return live
	}
	e.pairs.refresh(live)
	return cachedDispatch{cache: e.pairs}
}

func (e *Engine) live() liveDispatch {
	return liveDispatch{locations: e.locations.current(), dim: e.dim}
}
