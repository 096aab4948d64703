package guard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts guard decisions by variant and outcome.
type Metrics struct {
	decisions *prometheus.CounterVec
}

// NewMetrics registers the guard metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "authbridge",
			Subsystem: "guard",
			Name:      "decisions_total",
			Help:      "Route guard decisions by variant and outcome.",
		}, []string{"variant", "decision"}),
	}
}

func (m *Metrics) ObserveDecision(variant Variant, kind DecisionKind) {
	m.decisions.WithLabelValues(string(variant), kind.String()).Inc()
}
