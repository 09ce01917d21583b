package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	tele "gopkg.in/telebot.v4"
)

// Metrics holds Prometheus collectors for inbound Telegram updates.
type Metrics struct {
	Updates        *prometheus.CounterVec
	UpdateDuration *prometheus.HistogramVec
	RateLimited    prometheus.Counter
}

// NewMetrics registers update metrics with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Updates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeweeks_tg_updates_total",
			Help: "Total number of Telegram updates processed by kind and status",
		}, []string{"kind", "status"}),
		UpdateDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lifeweeks_tg_update_duration_seconds",
			Help:    "Time spent handling a Telegram update",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeweeks_tg_rate_limited_total",
			Help: "Total number of updates dropped by the per-user rate limit",
		}),
	}
}

// IncRateLimited increments the rate limited counter.
func (m *Metrics) IncRateLimited() {
	m.RateLimited.Inc()
}

// Middleware counts updates and observes their handling time.
func (m *Metrics) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		kind := UpdateKind(c.Update())
		err := next(c)
		status := "ok"
		if err != nil {
			status = "fail"
		}
		m.Updates.WithLabelValues(kind, status).Inc()
		m.UpdateDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		return err
	}
}
