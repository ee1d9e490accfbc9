package cmd

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/inference-sim/hawkes/hph"
)

// defaultParameters scores synthetic events from synth.DefaultProcess.
var defaultParameters = ParametersConfig{
	SigmaXprec: 2,
	TauXprec:   1,
	TauTprec:   0.1,
	Omega:      1,
	Theta:      0.5,
	Mu0:        1,
}

// syntheticScenario describes n default-process events in dim dimensions.
func syntheticScenario(dim, n int, seed int64, engine EngineConfig) *Scenario {
	return &Scenario{
		Dimension:  dim,
		Engine:     engine,
		Parameters: defaultParameters,
		Synthetic:  &SyntheticConfig{Seed: seed, Count: n},
	}
}

// WalkResult summarizes a Metropolis walk over locations.
type WalkResult struct {
	Proposals          int     `json:"proposals"`
	Accepted           int     `json:"accepted"`
	AcceptanceRate     float64 `json:"acceptance_rate"`
	FinalLogLikelihood float64 `json:"final_log_likelihood"`
}

// metropolisWalk is a demonstration driver for the store / evaluate /
// accept-or-restore protocol: it moves one location at a time by a Gaussian
// step and keeps the move with the Metropolis probability. The accept
// decision lives here in the CLI; the engine only scores states.
func metropolisWalk(e *hph.Engine, rng *rand.Rand, proposals int, step float64) (*WalkResult, error) {
	current, err := e.SumOfLikContribs()
	if err != nil {
		return nil, err
	}
	dim, n := e.InternalDimension(), e.LocationCount()
	res := &WalkResult{Proposals: proposals}

	for p := 0; p < proposals; p++ {
		e.StoreState()
		k := rng.Intn(n)
		loc := e.Locations()[k*dim : (k+1)*dim]
		for i := range loc {
			loc[i] += step * rng.NormFloat64()
		}
		if err := e.UpdateLocations(k, loc); err != nil {
			return nil, errors.Wrapf(err, "proposal %d", p)
		}
		proposed, err := e.SumOfLikContribs()
		if err != nil {
			return nil, err
		}
		if math.Log(rng.Float64()) < proposed-current {
			e.AcceptState()
			current = proposed
			res.Accepted++
		} else {
			e.RestoreState()
		}
	}

	if proposals > 0 {
		res.AcceptanceRate = float64(res.Accepted) / float64(proposals)
	}
	res.FinalLogLikelihood = current
	return res, nil
}
