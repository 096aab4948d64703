package crossdevice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts handshake legs by outcome.
type Metrics struct {
	legs *prometheus.CounterVec
}

// NewMetrics registers the cross-device metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		legs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "authbridge",
			Subsystem: "crossdevice",
			Name:      "legs_total",
			Help:      "Cross-device handshake legs by outcome.",
		}, []string{"leg", "outcome"}),
	}
}

func (m *Metrics) ObserveLeg(leg, outcome string) {
	m.legs.WithLabelValues(leg, outcome).Inc()
}
