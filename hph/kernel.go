package hph

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inference-sim/hawkes/hph/vec"
)

var (
	invSqrt2Pi = 1 / math.Sqrt(2*math.Pi)
	// logNormalizer is the log of the Gaussian normalizing constant for each
	// spatial dimension beyond the first; the per-pair kernel uses a single
	// one-dimensional density of the distance.
	logNormalizer = math.Log(invSqrt2Pi)
)

// pdf is the standard normal density.
func pdf(x float64) float64 {
	return math.Exp(-0.5*x*x) * invSqrt2Pi
}

// cdf is the standard normal distribution function.
func cdf(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// kernel holds the parameter-derived constants shared by every pair within
// one evaluation.
type kernel struct {
	p           Parameters
	dim         float64
	sigmaXprecD float64 // sigmaXprec^D
	tauXprecD   float64 // tauXprec^D
	background  float64 // mu0 * tauXprec^D * tauTprec
	excitation  float64 // theta * sigmaXprec^D
}

func newKernel(p Parameters, dim int) kernel {
	d := float64(dim)
	sigmaXprecD := math.Pow(p.SigmaXprec, d)
	tauXprecD := math.Pow(p.TauXprec, d)
	return kernel{
		p:           p,
		dim:         d,
		sigmaXprecD: sigmaXprecD,
		tauXprecD:   tauXprecD,
		background:  p.Mu0 * tauXprecD * p.TauTprec,
		excitation:  p.Theta * sigmaXprecD,
	}
}

// rate is the intensity that an event at spatial distance d and time lag dt
// contributes: a spatiotemporal Gaussian background plus an exponentially
// decaying excitation that only acts forward in time.
func (k *kernel) rate(d, dt float64) float64 {
	r := k.background * pdf(d*k.p.TauXprec) * pdf(dt*k.p.TauTprec)
	if dt > 0 {
		r += k.excitation * math.Exp(-k.p.Omega*dt) * pdf(d*k.p.SigmaXprec)
	}
	return r
}

// sumOfRates reduces rate(i, j) over every j for the event i: the total
// conditional intensity event i experiences.
func (k *kernel) sumOfRates(dispatch distanceDispatch, times []float64, i, width int) float64 {
	var dist, sum vec.Batch
	ti := times[i]
	vec.ForEachBatch(0, len(times), width, func(j, w int) {
		dispatch.distances(i, j, dist[:w])
		for l := 0; l < w; l++ {
			if missing(i, j+l, dist[l]) {
				continue
			}
			sum[l] += k.rate(dist[l], ti-times[j+l])
		}
	})
	return sum.Sum(vec.MaxWidth)
}

// logIntensity is log(sumOfRates), masked to zero when no pair contributes.
func logIntensity(sumOfRates float64) float64 {
	if sumOfRates > 0 {
		return math.Log(sumOfRates)
	}
	return 0
}

// compensator is the negative integrated intensity attributed to an event at
// time t over the window ending at horizon.
func (k *kernel) compensator(t, horizon float64) float64 {
	p := k.p
	return p.Theta/p.Omega*(math.Exp(-p.Omega*(horizon-t))-1) -
		p.Mu0*(cdf(p.TauTprec*(horizon-t))-cdf(-p.TauTprec*t))
}
