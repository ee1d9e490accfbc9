package hph

import (
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/hawkes/hph/trace"
)

// Option customizes an Engine at construction.
type Option func(*Engine)

// WithLogger sets the sink for diagnostic output. The default is the logrus
// standard logger tagged with component=hph.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.log = logger
		}
	}
}

// WithMetrics records evaluation counts and durations into m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTrace records every state-store call into r.
func WithTrace(r *trace.Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithBandwidthGradient makes LogLikelihoodGradient report the first three
// components with respect to the kernel bandwidths 1/sigmaXprec, 1/tauXprec
// and 1/tauTprec instead of the precisions themselves.
func WithBandwidthGradient() Option {
	return func(e *Engine) {
		e.bandwidthGradient = true
	}
}
