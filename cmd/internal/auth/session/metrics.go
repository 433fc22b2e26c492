package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels a single validation.
type Outcome string

const (
	OutcomeValid    Outcome = "valid"
	OutcomeRenewed  Outcome = "renewed"
	OutcomeNoToken  Outcome = "no_token"
	OutcomeNotFound Outcome = "not_found"
	OutcomeExpired  Outcome = "expired"
	OutcomeOrphaned Outcome = "orphaned"
)

// Metrics holds the session counters. A nil *Metrics records nothing.
type Metrics struct {
	createdTotal     prometheus.Counter
	validationsTotal *prometheus.CounterVec
	invalidateTotal  *prometheus.CounterVec
}

// NewMetrics registers the session counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		createdTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gatekeep",
			Subsystem: "session",
			Name:      "created_total",
			Help:      "Sessions created.",
		}),
		validationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekeep",
			Subsystem: "session",
			Name:      "validations_total",
			Help:      "Session validations by outcome.",
		}, []string{"outcome"}),
		invalidateTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekeep",
			Subsystem: "session",
			Name:      "invalidations_total",
			Help:      "Explicit invalidations by scope (session or user).",
		}, []string{"scope"}),
	}
}

func (m *Metrics) created() {
	if m == nil {
		return
	}
	m.createdTotal.Inc()
}

func (m *Metrics) validated(o Outcome) {
	if m == nil {
		return
	}
	m.validationsTotal.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) invalidated(scope string) {
	if m == nil {
		return
	}
	m.invalidateTotal.WithLabelValues(scope).Inc()
}
