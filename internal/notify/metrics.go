package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for scheduled notification jobs.
type Metrics struct {
	JobRuns     *prometheus.CounterVec
	Deliveries  *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
	LastRun     *prometheus.GaugeVec
}

// NewMetrics registers notification metrics with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeweeks_notify_job_runs_total",
			Help: "Total number of notification job runs by job and status",
		}, []string{"job", "status"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeweeks_notify_deliveries_total",
			Help: "Total number of per-user deliveries by job and outcome",
		}, []string{"job", "outcome"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lifeweeks_notify_job_duration_seconds",
			Help:    "Duration of notification job runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"job"}),
		LastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lifeweeks_notify_job_last_run_timestamp_seconds",
			Help: "Unix time of the last finished run per job",
		}, []string{"job"}),
	}
}

func (m *Metrics) observeDelivery(job, outcome string) {
	if m != nil {
		m.Deliveries.WithLabelValues(job, outcome).Inc()
	}
}

func (m *Metrics) observeRun(s Summary, status string) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(s.Job, status).Inc()
	m.JobDuration.WithLabelValues(s.Job).Observe(s.Duration.Seconds())
	m.LastRun.WithLabelValues(s.Job).SetToCurrentTime()
}
