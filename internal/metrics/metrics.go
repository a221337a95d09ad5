// Package metrics exposes Prometheus instruments for directory loads, ban
// mutations and notifications. A nil *Metrics records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "warden"

const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeSimulated = "simulated"
	OutcomeRejected  = "rejected"
)

type Metrics struct {
	loads         *prometheus.CounterVec
	loadDuration  prometheus.Histogram
	mutations     *prometheus.CounterVec
	inFlight      prometheus.Gauge
	notifications *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		loads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "directory",
				Name:      "loads_total",
				Help:      "Directory fetches by outcome.",
			},
			[]string{"outcome"},
		),
		loadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "directory",
				Name:      "load_duration_seconds",
				Help:      "Directory fetch latency.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mutation",
				Name:      "total",
				Help:      "Ban and unban requests by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "mutation",
				Name:      "in_flight",
				Help:      "Mutations currently awaiting the provider.",
			},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notification",
				Name:      "total",
				Help:      "Notifications emitted by severity.",
			},
			[]string{"severity"},
		),
	}
}

func (m *Metrics) ObserveLoad(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(outcome).Inc()
	m.loadDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveMutation(action, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) SetInFlight(n int) {
	if m == nil {
		return
	}
	m.inFlight.Set(float64(n))
}

func (m *Metrics) ObserveNotification(severity string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(severity).Inc()
}
