package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the API.
type Metrics struct {
	// LeavesCreatedTotal counts created leaves by resulting status.
	LeavesCreatedTotal *prometheus.CounterVec

	// LeaveTransitionsTotal counts lifecycle transitions by kind.
	LeaveTransitionsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers Prometheus metrics under the namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		LeavesCreatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "leaves_created_total",
				Help:      "Total number of leave requests created",
			},
			[]string{"status"},
		),

		LeaveTransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "leave_transitions_total",
				Help:      "Total number of leave lifecycle transitions",
			},
			[]string{"transition"},
		),
	}
}

// NopMetrics returns unregistered metrics for tests.
func NopMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		LeavesCreatedTotal: f.NewCounterVec(
			prometheus.CounterOpts{Name: "leaves_created_total", Help: "unused"},
			[]string{"status"}),
		LeaveTransitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{Name: "leave_transitions_total", Help: "unused"},
			[]string{"transition"}),
	}
}

// IncLeaveCreated increments the created counter for a status.
func (m *Metrics) IncLeaveCreated(status string) {
	m.LeavesCreatedTotal.WithLabelValues(status).Inc()
}

// IncTransition increments the transition counter.
func (m *Metrics) IncTransition(transition string) {
	m.LeaveTransitionsTotal.WithLabelValues(transition).Inc()
}
