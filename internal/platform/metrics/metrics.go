// Package metrics exports identity events as Prometheus counters.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/janisto/astro-identity/internal/service/identity"
)

const namespace = "astro_identity"

// Metrics holds the identity counters. It implements identity.Observer.
type Metrics struct {
	Events        *prometheus.CounterVec
	Errors        *prometheus.CounterVec
	Registrations *prometheus.CounterVec
}

// New creates the counters and registers them on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Identity events by name",
		}, []string{"event"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed identity operations by operation",
		}, []string{"operation"}),
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration attempts by result: success or the registration error code",
		}, []string{"result"}),
	}
}

// RecordEvent counts the event; registrations are also counted by result.
func (m *Metrics) RecordEvent(_ context.Context, name string, attrs map[string]string) {
	m.Events.WithLabelValues(name).Inc()
	if name == identity.EventRegistration {
		if result := attrs["result"]; result != "" {
			m.Registrations.WithLabelValues(result).Inc()
		}
	}
}

// RecordError counts a failed operation.
func (m *Metrics) RecordError(_ context.Context, operation string, _ error) {
	m.Errors.WithLabelValues(operation).Inc()
}

var _ identity.Observer = (*Metrics)(nil)
