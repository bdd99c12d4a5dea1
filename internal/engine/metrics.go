package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the scene's Prometheus collectors.
type Metrics struct {
	events      *prometheus.CounterVec
	frames      prometheus.Counter
	ticks       prometheus.Counter
	fetches     *prometheus.CounterVec
	expansions  prometheus.Counter
	subscribers prometheus.Gauge
}

// NewMetrics creates the scene collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neuralmap",
			Subsystem: "scene",
			Name:      "events_total",
			Help:      "Input events applied, by type",
		}, []string{"type"}),

		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neuralmap",
			Subsystem: "scene",
			Name:      "frames_published_total",
			Help:      "Frames published to subscribers",
		}),

		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neuralmap",
			Subsystem: "scene",
			Name:      "ticks_total",
			Help:      "Animation ticks processed",
		}),

		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neuralmap",
			Subsystem: "provider",
			Name:      "fetches_total",
			Help:      "Graph fetches, by outcome (applied, kept_previous, stale)",
		}, []string{"outcome"}),

		expansions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neuralmap",
			Subsystem: "scene",
			Name:      "expansions_total",
			Help:      "Collapsed to expanded transitions",
		}),

		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "neuralmap",
			Subsystem: "scene",
			Name:      "subscribers",
			Help:      "Active frame subscribers",
		}),
	}

	reg.MustRegister(
		m.events,
		m.frames,
		m.ticks,
		m.fetches,
		m.expansions,
		m.subscribers,
	)
	return m
}
