// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "pet_trainer"

// Notification delivery results.
const (
	ResultSent   = "sent"
	ResultFailed = "failed"
)

type Metrics struct {
	Sweeps         prometheus.Counter
	SweepDuration  prometheus.Histogram
	SweepErrors    prometheus.Counter
	Notifications  *prometheus.CounterVec
	Commands       *prometheus.CounterVec
	AcceleratedOn  prometheus.Gauge
	ActiveSessions prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which tests use.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweeps_total",
			Help:      "Completed scheduler sweeps.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweep_duration_seconds",
			Help:      "Time spent in one sweep, sends included.",
			Buckets:   prometheus.DefBuckets,
		}),
		SweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "record_errors_total",
			Help:      "Records skipped during a sweep because of a storage error.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "notifications_total",
			Help:      "Notifications by type and delivery result.",
		}, []string{"type", "result"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "commands_total",
			Help:      "Handled bot commands and button presses.",
		}, []string{"command"}),
		AcceleratedOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accelerated_mode",
			Help:      "1 while accelerated timers are in effect.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "active_sessions",
			Help:      "Active sessions seen by the last sweep.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Sweeps, m.SweepDuration, m.SweepErrors, m.Notifications,
			m.Commands, m.AcceleratedOn, m.ActiveSessions,
		)
	}
	return m
}

// SetAccelerated mirrors the run mode into the gauge.
func (m *Metrics) SetAccelerated(on bool) {
	if on {
		m.AcceleratedOn.Set(1)
		return
	}
	m.AcceleratedOn.Set(0)
}
