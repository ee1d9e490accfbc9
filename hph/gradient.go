package hph

import (
	"math"

	"github.com/inference-sim/hawkes/hph/reduce"
	"github.com/inference-sim/hawkes/hph/vec"
)

// Per-event accumulator slots. The first six line up with the parameter
// indices; slotRate holds the total intensity used as the denominator.
const (
	slotSigmaX = iota
	slotTauX
	slotTauT
	slotOmega
	slotTheta
	slotMu0
	slotRate
	slotCount
)

// accumulate adds the pair's partial-derivative terms to lane l of sums.
func (k *kernel) accumulate(d, dt float64, l int, sums *[slotCount]vec.Batch) {
	p := &k.p
	background := pdf(d*p.TauXprec) * pdf(dt*p.TauTprec)
	var excitation float64
	if dt > 0 {
		excitation = math.Exp(-p.Omega*dt) * pdf(d*p.SigmaXprec)
	}
	d2 := d * d

	sums[slotSigmaX][l] += (p.SigmaXprec*p.SigmaXprec*d2 - k.dim) * excitation
	sums[slotTauX][l] += (p.TauXprec*p.TauXprec*d2 - k.dim) * background
	sums[slotTauT][l] += (p.TauTprec*p.TauTprec*dt*dt - 1) * background
	sums[slotOmega][l] += dt * excitation
	sums[slotTheta][l] += excitation
	sums[slotMu0][l] += background
	sums[slotRate][l] += k.background*background + k.excitation*excitation
}

// eventGradient adds event i's normalized contributions to the six gradient
// sums in acc. The chain-rule factors are applied by the caller once the
// sums over all events are known.
func (k *kernel) eventGradient(dispatch distanceDispatch, times []float64, i, width int, horizon float64, acc reduce.Pack) {
	var dist vec.Batch
	var sums [slotCount]vec.Batch
	ti := times[i]
	vec.ForEachBatch(0, len(times), width, func(j, w int) {
		dispatch.distances(i, j, dist[:w])
		for l := 0; l < w; l++ {
			if missing(i, j+l, dist[l]) {
				continue
			}
			k.accumulate(dist[l], ti-times[j+l], l, &sums)
		}
	})

	var pack [slotCount]float64
	for s := range sums {
		pack[s] = sums[s].Sum(vec.MaxWidth)
	}

	var inv float64
	if pack[slotRate] > 0 {
		inv = 1 / pack[slotRate]
	}
	p := &k.p
	tau := horizon - ti
	decay := math.Exp(-p.Omega * tau)

	acc[SigmaXprecIndex] += pack[slotSigmaX] * inv
	acc[TauXprecIndex] += pack[slotTauX] * inv
	acc[TauTprecIndex] += pack[slotTauT]*inv*k.tauXprecD +
		pdf(p.TauTprec*tau)*tau + pdf(p.TauTprec*ti)*ti
	acc[OmegaIndex] += (1-(1+p.Omega*tau)*decay)/(p.Omega*p.Omega) -
		pack[slotOmega]*inv*k.sigmaXprecD
	acc[ThetaIndex] += pack[slotTheta]*inv*k.sigmaXprecD + (decay-1)/p.Omega
	acc[Mu0Index] += pack[slotMu0]*inv*k.tauXprecD*p.TauTprec -
		(cdf(p.TauTprec*tau) - cdf(-p.TauTprec*ti))
}

// chainFactors returns the per-component scale applied after both reduction
// levels. With bandwidth set, the first three components are derivatives
// with respect to 1/sigmaXprec, 1/tauXprec and 1/tauTprec.
func (k *kernel) chainFactors(bandwidth bool) [ParameterCount]float64 {
	p := &k.p
	if bandwidth {
		return [ParameterCount]float64{
			p.Theta * k.sigmaXprecD * p.SigmaXprec,
			p.Mu0 * k.tauXprecD * p.TauXprec * p.TauTprec,
			p.Mu0 * p.TauTprec * p.TauTprec,
			p.Theta,
			1,
			1,
		}
	}
	return [ParameterCount]float64{
		-p.Theta * math.Pow(p.SigmaXprec, k.dim-1),
		-p.Mu0 * math.Pow(p.TauXprec, k.dim-1) * p.TauTprec,
		-p.Mu0,
		p.Theta,
		1,
		1,
	}
}

// computeLogLikelihoodGradient fills e.gradient.
func (e *Engine) computeLogLikelihoodGradient() {
	k := newKernel(e.params, e.dim)
	dispatch := e.dispatch()
	horizon := e.times[e.n-1]

	grad := e.reducer.Reduce(e.n, ParameterCount, func(i int, acc reduce.Pack) {
		k.eventGradient(dispatch, e.times, i, e.width, horizon, acc)
	})

	factors := k.chainFactors(e.bandwidthGradient)
	for c := range e.gradient {
		e.gradient[c] = grad[c] * factors[c]
	}
}
