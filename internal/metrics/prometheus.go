package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors are the Prometheus series for recipe service calls.
type Collectors struct {
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
}

// NewCollectors registers the collectors with reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		CallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "menu_planner",
			Name:      "recipe_api_calls_total",
			Help:      "Calls to the recipe service by call name and outcome.",
		}, []string{"call", "outcome"}),
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "menu_planner",
			Name:      "recipe_api_call_duration_seconds",
			Help:      "Latency of calls to the recipe service.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"call"}),
	}
}

func (c *Collectors) observe(m CallMetric) {
	c.CallsTotal.WithLabelValues(m.Call, m.Outcome).Inc()
	c.CallDuration.WithLabelValues(m.Call).Observe(float64(m.LatencyMS) / 1000)
}
