package cmd

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/hawkes/hph"
	"github.com/inference-sim/hawkes/hph/synth"
	"github.com/inference-sim/hawkes/hph/trace"
)

// ErrInvalidScenario is wrapped by every scenario validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is the YAML description of one likelihood evaluation.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Scenario struct {
	Dimension  int              `yaml:"dimension"`
	Engine     EngineConfig     `yaml:"engine"`
	Parameters ParametersConfig `yaml:"parameters"`
	Events     *EventsConfig    `yaml:"events"`
	Synthetic  *SyntheticConfig `yaml:"synthetic"`
	Trace      string           `yaml:"trace"`
}

// EngineConfig maps onto hph.Config flags and options.
type EngineConfig struct {
	Parallel          bool `yaml:"parallel"`
	PairCache         bool `yaml:"pair_cache"`
	Threads           int  `yaml:"threads"`
	VectorWidth       int  `yaml:"vector_width"`
	BandwidthGradient bool `yaml:"bandwidth_gradient"`
}

// ParametersConfig names the six kernel parameters.
type ParametersConfig struct {
	SigmaXprec float64 `yaml:"sigma_x_prec"`
	TauXprec   float64 `yaml:"tau_x_prec"`
	TauTprec   float64 `yaml:"tau_t_prec"`
	Omega      float64 `yaml:"omega"`
	Theta      float64 `yaml:"theta"`
	Mu0        float64 `yaml:"mu0"`
}

// EventsConfig lists observed events explicitly.
type EventsConfig struct {
	Locations [][]float64 `yaml:"locations"`
	Times     []float64   `yaml:"times"`
}

// SyntheticConfig draws events from a branching simulation. Zero process
// fields take their synth.DefaultProcess values.
type SyntheticConfig struct {
	Seed            int64   `yaml:"seed"`
	Count           int     `yaml:"count"`
	ImmigrantRate   float64 `yaml:"immigrant_rate"`
	ImmigrantSpread float64 `yaml:"immigrant_spread"`
	BranchingRatio  float64 `yaml:"branching_ratio"`
	Decay           float64 `yaml:"decay"`
	Bandwidth       float64 `yaml:"bandwidth"`
}

// LoadScenario parses a scenario file with strict field checking: typos must
// cause errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading scenario %s", path)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, errors.Wrap(err, "parsing scenario YAML")
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate returns every problem with the scenario at once.
func (sc *Scenario) Validate() error {
	var err error
	if sc.Dimension < 1 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidScenario, "dimension %d < 1", sc.Dimension))
	}
	if !trace.IsValidTraceLevel(sc.Trace) {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidScenario, "unknown trace level %q", sc.Trace))
	}
	for i, v := range sc.Parameters.slice() {
		if v <= 0 {
			err = multierr.Append(err, errors.Wrapf(ErrInvalidScenario, "parameter %s = %v must be positive", hph.ParameterNames[i], v))
		}
	}

	switch {
	case sc.Events == nil && sc.Synthetic == nil:
		err = multierr.Append(err, errors.Wrap(ErrInvalidScenario, "one of events or synthetic is required"))
	case sc.Events != nil && sc.Synthetic != nil:
		err = multierr.Append(err, errors.Wrap(ErrInvalidScenario, "events and synthetic are mutually exclusive"))
	case sc.Events != nil:
		err = multierr.Append(err, sc.Events.validate(sc.Dimension))
	default:
		if sc.Synthetic.Count < 1 {
			err = multierr.Append(err, errors.Wrapf(ErrInvalidScenario, "synthetic count %d < 1", sc.Synthetic.Count))
		}
	}
	return err
}

func (ev *EventsConfig) validate(dim int) error {
	var err error
	if len(ev.Times) == 0 {
		err = multierr.Append(err, errors.Wrap(ErrInvalidScenario, "events need at least one time"))
	}
	if len(ev.Locations) != len(ev.Times) {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidScenario, "%d locations for %d times", len(ev.Locations), len(ev.Times)))
	}
	for i, loc := range ev.Locations {
		if len(loc) != dim {
			err = multierr.Append(err, errors.Wrapf(ErrInvalidScenario, "location %d has %d coordinates, want %d", i, len(loc), dim))
		}
	}
	return err
}

func (p ParametersConfig) slice() []float64 {
	return hph.Parameters{
		SigmaXprec: p.SigmaXprec,
		TauXprec:   p.TauXprec,
		TauTprec:   p.TauTprec,
		Omega:      p.Omega,
		Theta:      p.Theta,
		Mu0:        p.Mu0,
	}.Slice()
}

// process returns the generating process with defaults filled in.
func (s *SyntheticConfig) process(dim int) synth.Process {
	p := synth.DefaultProcess(dim)
	if s.ImmigrantRate != 0 {
		p.ImmigrantRate = s.ImmigrantRate
	}
	if s.ImmigrantSpread != 0 {
		p.ImmigrantSpread = s.ImmigrantSpread
	}
	if s.BranchingRatio != 0 {
		p.BranchingRatio = s.BranchingRatio
	}
	if s.Decay != 0 {
		p.Decay = s.Decay
	}
	if s.Bandwidth != 0 {
		p.Bandwidth = s.Bandwidth
	}
	return p
}

// events materializes the scenario's event set.
func (sc *Scenario) events() (*synth.Events, error) {
	if sc.Synthetic != nil {
		return sc.Synthetic.process(sc.Dimension).Generate(synth.NewPartitionedRNG(sc.Synthetic.Seed), sc.Synthetic.Count)
	}
	ev := &synth.Events{
		Dimension: sc.Dimension,
		Locations: make([]float64, 0, len(sc.Events.Times)*sc.Dimension),
		Times:     append([]float64(nil), sc.Events.Times...),
	}
	for _, loc := range sc.Events.Locations {
		ev.Locations = append(ev.Locations, loc...)
	}
	return ev, nil
}

// engineConfig returns the hph.Config for n events.
func (sc *Scenario) engineConfig(n int) hph.Config {
	var flags hph.Flags
	if sc.Engine.Parallel {
		flags |= hph.FlagParallel
	}
	if sc.Engine.PairCache {
		flags |= hph.FlagPairCache
	}
	return hph.Config{
		EmbeddingDimension: sc.Dimension,
		LocationCount:      n,
		Flags:              flags,
		Threads:            sc.Engine.Threads,
		VectorWidth:        sc.Engine.VectorWidth,
	}
}

// buildEngine constructs an engine loaded with the scenario's events and
// parameters. The caller must Close the engine.
func buildEngine(sc *Scenario, opts ...hph.Option) (*hph.Engine, *synth.Events, error) {
	ev, err := sc.events()
	if err != nil {
		return nil, nil, err
	}
	if sc.Engine.BandwidthGradient {
		opts = append(opts, hph.WithBandwidthGradient())
	}
	e, err := hph.New(sc.engineConfig(ev.Len()), opts...)
	if err != nil {
		return nil, nil, err
	}
	err = multierr.Combine(
		e.UpdateLocations(hph.AllLocations, ev.Locations),
		e.SetTimestamps(ev.Times),
		e.SetParameters(sc.Parameters.slice()),
	)
	if err != nil {
		e.Close()
		return nil, nil, err
	}
	return e, ev, nil
}
