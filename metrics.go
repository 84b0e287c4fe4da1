package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for tile rendering.
type Metrics struct {
	Tiles            *prometheus.CounterVec // labels: outcome={rendered,fallback,malformed}
	NeighborFailures prometheus.Counter
	RenderDuration   prometheus.Histogram
	LayerVisible     prometheus.Gauge
	SeedTiles        *prometheus.CounterVec // labels: result={saved,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		Tiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slopetiler",
			Name:      "tiles_total",
			Help:      "Slope tile requests by outcome.",
		}, []string{"outcome"}),
		NeighborFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slopetiler",
			Name:      "neighbor_fetch_failures_total",
			Help:      "Elevation neighbor tiles that failed and were zero filled.",
		}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "slopetiler",
			Name:      "render_duration_seconds",
			Help:      "Duration of a full fetch-compute-encode cycle for one tile.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		LayerVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "slopetiler",
			Name:      "layer_visible",
			Help:      "1 when the slope overlay is visible, 0 otherwise.",
		}),
		SeedTiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slopetiler",
			Name:      "seed_tiles_total",
			Help:      "Elevation tiles handled by the seed task.",
		}, []string{"result"}),
	}
}

// NewMetrics creates the collectors and registers them with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Tiles,
		m.NeighborFailures,
		m.RenderDuration,
		m.LayerVisible,
		m.SeedTiles,
	)
	return m
}

// NewMetricsForTesting creates unregistered collectors so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
