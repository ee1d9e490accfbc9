package hph

import "github.com/inference-sim/hawkes/hph/reduce"

// computeSumOfLikContribs evaluates the total log-likelihood and refreshes
// the per-event term cache. Each worker writes only the term slots of its
// own indices.
func (e *Engine) computeSumOfLikContribs() float64 {
	k := newKernel(e.params, e.dim)
	dispatch := e.dispatch()
	horizon := e.times[e.n-1]

	total := e.reducer.Reduce(e.n, 1, func(i int, acc reduce.Pack) {
		term := logIntensity(k.sumOfRates(dispatch, e.times, i, e.width)) +
			k.compensator(e.times[i], horizon)
		e.terms[i] = term
		acc[0] += term
	})

	return total[0] + float64(e.n*(e.dim-1))*logNormalizer
}
