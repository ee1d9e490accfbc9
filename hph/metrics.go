package hph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Evaluation kinds used as the "kind" label.
const (
	kindLikelihood = "likelihood"
	kindGradient   = "gradient"
)

// Metrics exposes engine activity as prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	Evaluations  *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	Transactions *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hawkes_evaluations_total",
				Help: "Number of likelihood and gradient evaluations.",
			}, []string{"kind", "reducer"}),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hawkes_evaluation_duration_seconds",
				Help:    "Wall time of likelihood and gradient evaluations.",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 14),
			}, []string{"kind", "reducer"}),
		Transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hawkes_transactions_total",
				Help: "Number of state-store calls by operation.",
			}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.Evaluations, m.Duration, m.Transactions)
	}
	return m
}

func (m *Metrics) observe(kind, reducer string, start time.Time) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"kind": kind, "reducer": reducer}
	m.Evaluations.With(labels).Inc()
	m.Duration.With(labels).Observe(time.Since(start).Seconds())
}

func (m *Metrics) transaction(op string) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(op).Inc()
}
