// Package synth generates event sets from a spatiotemporal Hawkes process by
// simulating its branching structure: immigrants arrive as a homogeneous
// Poisson process with Gaussian locations, and every event spawns a Poisson
// number of offspring displaced by a Gaussian and delayed by an exponential.
package synth

import (
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ErrInvalidProcess is wrapped by every Process validation failure.
var ErrInvalidProcess = errors.New("synth: invalid process")

// maxGenerations caps the branching depth of a single immigrant's cluster.
const maxGenerations = 64

// Process describes the generating Hawkes process.
type Process struct {
	Dimension       int     // spatial dimension D
	ImmigrantRate   float64 // background events per unit time
	ImmigrantSpread float64 // standard deviation of immigrant locations
	BranchingRatio  float64 // mean offspring per event, must be < 1
	Decay           float64 // rate of the exponential offspring delay (omega)
	Bandwidth       float64 // standard deviation of offspring displacement (1/sigmaXprec)
}

// DefaultProcess returns a mildly self-exciting process in dim dimensions.
func DefaultProcess(dim int) Process {
	return Process{
		Dimension:       dim,
		ImmigrantRate:   1,
		ImmigrantSpread: 1,
		BranchingRatio:  0.5,
		Decay:           1,
		Bandwidth:       0.5,
	}
}

// Validate returns every problem with p at once.
func (p Process) Validate() error {
	var err error
	if p.Dimension < 1 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidProcess, "dimension %d < 1", p.Dimension))
	}
	if p.ImmigrantRate <= 0 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidProcess, "immigrant rate %v <= 0", p.ImmigrantRate))
	}
	if p.ImmigrantSpread <= 0 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidProcess, "immigrant spread %v <= 0", p.ImmigrantSpread))
	}
	if p.BranchingRatio < 0 || p.BranchingRatio >= 1 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidProcess, "branching ratio %v not in [0, 1)", p.BranchingRatio))
	}
	if p.Decay <= 0 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidProcess, "decay %v <= 0", p.Decay))
	}
	if p.Bandwidth <= 0 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidProcess, "bandwidth %v <= 0", p.Bandwidth))
	}
	return err
}

// Events is a time-ordered event set.
type Events struct {
	Dimension int
	Locations []float64 // N·D, point-major
	Times     []float64 // ascending; the last element is the horizon
}

// Len returns the number of events.
func (ev *Events) Len() int {
	return len(ev.Times)
}

// Location returns the coordinates of event i (aliases ev.Locations).
func (ev *Events) Location(i int) []float64 {
	return ev.Locations[i*ev.Dimension : (i+1)*ev.Dimension]
}

type event struct {
	t   float64
	loc []float64
}

// Generate returns the first n events of the process in time order.
func (p Process) Generate(rng *PartitionedRNG, n int) (*Events, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, errors.Wrapf(ErrInvalidProcess, "event count %d < 1", n)
	}

	immigrantRNG := rng.ForSubsystem(SubsystemImmigrants)
	offspringRNG := rng.ForSubsystem(SubsystemOffspring)
	arrivals := &ExponentialSampler{rate: p.ImmigrantRate}
	delays := &ExponentialSampler{rate: p.Decay}
	children := &PoissonSampler{mean: p.BranchingRatio}
	spread := &GaussianSampler{stdDev: p.ImmigrantSpread}
	displacement := &GaussianSampler{stdDev: p.Bandwidth}
	origin := make([]float64, p.Dimension)

	var events []event
	var clock float64
	for {
		clock += arrivals.Sample(immigrantRNG)
		// Offspring always follow their parent, so once n events precede the
		// next immigrant no later cluster can change the first n.
		if len(events) >= n && countBefore(events, clock) >= n {
			break
		}

		immigrant := event{t: clock, loc: make([]float64, p.Dimension)}
		spread.SampleAround(immigrantRNG, origin, immigrant.loc)
		events = append(events, immigrant)

		generation := []event{immigrant}
		for depth := 0; depth < maxGenerations && len(generation) > 0; depth++ {
			var next []event
			for _, parent := range generation {
				for c := children.Sample(offspringRNG); c > 0; c-- {
					child := event{t: parent.t + delays.Sample(offspringRNG), loc: make([]float64, p.Dimension)}
					displacement.SampleAround(offspringRNG, parent.loc, child.loc)
					next = append(next, child)
				}
			}
			events = append(events, next...)
			generation = next
		}
	}

	sort.Slice(events, func(a, b int) bool { return events[a].t < events[b].t })
	out := &Events{
		Dimension: p.Dimension,
		Locations: make([]float64, 0, n*p.Dimension),
		Times:     make([]float64, 0, n),
	}
	for _, ev := range events[:n] {
		out.Times = append(out.Times, ev.t)
		out.Locations = append(out.Locations, ev.loc...)
	}
	return out, nil
}

func countBefore(events []event, t float64) int {
	count := 0
	for _, ev := range events {
		if ev.t < t {
			count++
		}
	}
	return count
}
