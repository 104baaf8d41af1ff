package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Upstream call outcomes.
const (
	OutcomeSuccess          = "success"
	OutcomeNotFound         = "not_found"
	OutcomePermissionDenied = "permission_denied"
	OutcomeUnavailable      = "unavailable"
	OutcomeMalformed        = "malformed"
)

// UpstreamMetrics tracks calls made to the Steam Web API and community pages.
// A nil *UpstreamMetrics is valid and records nothing.
type UpstreamMetrics struct {
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
}

// NewUpstreamMetrics creates and registers upstream metrics on the given registry.
func NewUpstreamMetrics(reg prometheus.Registerer) *UpstreamMetrics {
	m := &UpstreamMetrics{
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "calls_total",
			Help:      "Total number of upstream Steam calls, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_duration_seconds",
			Help:      "Duration of upstream Steam calls in seconds.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
	}

	reg.MustRegister(m.CallsTotal, m.CallDuration)
	return m
}

// Observe records one upstream call.
func (m *UpstreamMetrics) Observe(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(operation, outcome).Inc()
	m.CallDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
