package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/crewline/crewline/internal/feature"
)

type metrics struct {
	registry         *prometheus.Registry
	featuresByStatus *prometheus.GaugeVec
	snapshotSkips    prometheus.Counter
	sseClients       prometheus.Gauge
}

// newMetrics uses a per-server registry so multiple servers (tests) never
// collide on the default registry.
func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &metrics{
		registry: registry,
		featuresByStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pipeline_features",
			Help: "Features currently in each pipeline status.",
		}, []string{"status"}),
		snapshotSkips: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_snapshot_skips_total",
			Help: "Snapshot ticks skipped because the store was busy.",
		}),
		sseClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_sse_clients",
			Help: "Connected server-sent-events clients.",
		}),
	}
}

func (m *metrics) observe(features []feature.Feature) {
	counts := map[feature.Status]int{}
	for _, f := range features {
		counts[f.Status]++
	}
	for _, status := range feature.Statuses() {
		m.featuresByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
