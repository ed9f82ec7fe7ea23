package provisioning

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records plan execution in Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	stepsTotal        *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	operationWait     *prometheus.HistogramVec
	operationWarnings *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lbprov",
				Subsystem: "plan",
				Name:      "steps_total",
				Help:      "Total number of plan steps by resource kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lbprov",
				Subsystem: "plan",
				Name:      "step_duration_seconds",
				Help:      "Duration of plan steps in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
			},
			[]string{"kind"},
		),
		operationWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lbprov",
				Subsystem: "operation",
				Name:      "wait_seconds",
				Help:      "Time spent waiting for provider operations by result",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4min
			},
			[]string{"kind", "result"},
		),
		operationWarnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lbprov",
				Subsystem: "operation",
				Name:      "warnings_total",
				Help:      "Total number of warnings attached to finished operations",
			},
			[]string{"kind", "code"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.stepsTotal, m.stepDuration, m.operationWait, m.operationWarnings)
	}
	return m
}

func (m *Metrics) recordStep(kind string, outcome Outcome, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(kind, string(outcome)).Inc()
	if outcome != OutcomeSkipped {
		m.stepDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

func (m *Metrics) recordWait(kind, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationWait.WithLabelValues(kind, result).Observe(duration.Seconds())
}

func (m *Metrics) recordWarning(kind, code string) {
	if m == nil {
		return
	}
	m.operationWarnings.WithLabelValues(kind, code).Inc()
}
