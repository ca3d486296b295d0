package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the outbox relay.
type Metrics struct {
	Published           prometheus.Counter
	PublishFailures     prometheus.Counter
	CircuitBreakerState prometheus.Gauge
}

// NewMetrics registers relay metrics on reg, or the default registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounter(prometheus.CounterOpts{
			Name: "invitegate_events_published_total",
			Help: "Total number of outbox events delivered to the publisher",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "invitegate_events_publish_failures_total",
			Help: "Total number of failed publish attempts",
		}),
		CircuitBreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "invitegate_events_circuit_breaker_state",
			Help: "Current publisher circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}

func (m *Metrics) addPublished(n int) {
	if m == nil {
		return
	}
	m.Published.Add(float64(n))
}

func (m *Metrics) incPublishFailures() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}

func (m *Metrics) setCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
		return
	}
	m.CircuitBreakerState.Set(0)
}
