package onboarding

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the registration dialogue.
type Metrics struct {
	Started             prometheus.Counter
	Completed           prometheus.Counter
	Rejected            *prometheus.CounterVec
	PersistenceFailures prometheus.Counter
}

// NewMetrics registers onboarding metrics with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Started: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeweeks_onboarding_started_total",
			Help: "Total number of registration dialogues started with /start",
		}),
		Completed: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeweeks_onboarding_completed_total",
			Help: "Total number of registrations persisted",
		}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeweeks_onboarding_rejected_total",
			Help: "Total number of rejected dialogue inputs by reason",
		}, []string{"reason"}),
		PersistenceFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeweeks_onboarding_persistence_failures_total",
			Help: "Total number of session or registry failures during the dialogue",
		}),
	}
}

func (m *Metrics) incStarted() {
	if m != nil {
		m.Started.Inc()
	}
}

func (m *Metrics) incCompleted() {
	if m != nil {
		m.Completed.Inc()
	}
}

func (m *Metrics) incRejected(reason string) {
	if m != nil {
		m.Rejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) incPersistenceFailure() {
	if m != nil {
		m.PersistenceFailures.Inc()
	}
}
