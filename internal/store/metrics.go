package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsPublisher records store events as Prometheus metrics.
type MetricsPublisher struct {
	fetches      *prometheus.CounterVec
	inflight     *prometheus.GaugeVec
	duration     *prometheus.HistogramVec
	stale        *prometheus.CounterVec
	authFailures *prometheus.CounterVec
	puts         *prometheus.CounterVec
}

// NewMetricsPublisher creates the store collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetricsPublisher(reg prometheus.Registerer) *MetricsPublisher {
	m := &MetricsPublisher{
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portald",
				Subsystem: "store",
				Name:      "fetches_total",
				Help:      "Resolved fetches by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "portald",
				Subsystem: "store",
				Name:      "inflight_fetches",
				Help:      "Fetches issued and not yet resolved",
			},
			[]string{"kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "portald",
				Subsystem: "store",
				Name:      "fetch_duration_seconds",
				Help:      "Duration of accepted fetches in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		stale: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portald",
				Subsystem: "store",
				Name:      "stale_discards_total",
				Help:      "Fetch results discarded because a newer fetch was issued",
			},
			[]string{"kind"},
		),
		authFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portald",
				Subsystem: "store",
				Name:      "auth_failures_total",
				Help:      "Fetches that failed with an authentication error",
			},
			[]string{"kind"},
		),
		puts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "portald",
				Subsystem: "store",
				Name:      "puts_total",
				Help:      "Out-of-band results recorded with Put",
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.fetches, m.inflight, m.duration, m.stale, m.authFailures, m.puts)
	}
	return m
}

func (m *MetricsPublisher) Publish(e Event) {
	kind := string(e.Kind)
	switch e.Name {
	case EventFetchStart:
		m.inflight.WithLabelValues(kind).Inc()
	case EventFetchReady:
		m.inflight.WithLabelValues(kind).Dec()
		m.fetches.WithLabelValues(kind, "ready").Inc()
		m.observe(kind, e)
	case EventFetchFailed:
		m.inflight.WithLabelValues(kind).Dec()
		m.fetches.WithLabelValues(kind, "failed").Inc()
		m.observe(kind, e)
		if auth, _ := e.Fields["auth"].(bool); auth {
			m.authFailures.WithLabelValues(kind).Inc()
		}
	case EventFetchStale:
		m.inflight.WithLabelValues(kind).Dec()
		m.stale.WithLabelValues(kind).Inc()
	case EventPut:
		m.puts.WithLabelValues(kind).Inc()
	}
}

func (m *MetricsPublisher) observe(kind string, e Event) {
	if ms, ok := e.Fields["dur_ms"].(int64); ok {
		m.duration.WithLabelValues(kind).Observe(float64(ms) / 1000)
	}
}
