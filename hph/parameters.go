package hph

// ParameterCount is the number of scalar kernel parameters.
const ParameterCount = 6

// Parameter indices, in SetParameters / gradient order.
const (
	SigmaXprecIndex = iota // spatial self-excitation precision
	TauXprecIndex          // spatial background precision
	TauTprecIndex          // temporal background precision
	OmegaIndex             // time-decay rate of excitation
	ThetaIndex             // self-excitation weight
	Mu0Index               // background weight
)

// ParameterNames lists the parameters in index order.
var ParameterNames = [ParameterCount]string{"sigmaXprec", "tauXprec", "tauTprec", "omega", "theta", "mu0"}

// Parameters holds the six kernel parameters.
type Parameters struct {
	SigmaXprec float64
	TauXprec   float64
	TauTprec   float64
	Omega      float64
	Theta      float64
	Mu0        float64
}

// ParametersFromSlice reads the six parameters in index order.
// The caller guarantees len(data) == ParameterCount.
func ParametersFromSlice(data []float64) Parameters {
	return Parameters{
		SigmaXprec: data[SigmaXprecIndex],
		TauXprec:   data[TauXprecIndex],
		TauTprec:   data[TauTprecIndex],
		Omega:      data[OmegaIndex],
		Theta:      data[ThetaIndex],
		Mu0:        data[Mu0Index],
	}
}

// Slice returns the parameters in index order.
func (p Parameters) Slice() []float64 {
	return []float64{p.SigmaXprec, p.TauXprec, p.TauTprec, p.Omega, p.Theta, p.Mu0}
}
