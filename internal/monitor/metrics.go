package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pinc-sim/mgtune/internal/tuner"
)

// Metrics exposes trial progress in Prometheus format on its own registry
type Metrics struct {
	registry  *prometheus.Registry
	trials    *prometheus.CounterVec
	trialTime prometheus.Histogram
	bestTime  prometheus.Gauge
	coarse    prometheus.Gauge
	levels    prometheus.Gauge
	failures  *prometheus.CounterVec
	wallClock prometheus.Histogram
}

// NewMetrics creates and registers the tuner collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mgtune_trials_total",
			Help: "Completed PINC trials by search direction.",
		}, []string{"direction"}),
		trialTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mgtune_trial_time_ns",
			Help:    "Solver time reported by PINC per trial, in nanoseconds.",
			Buckets: prometheus.ExponentialBuckets(1e3, 4, 14),
		}),
		bestTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mgtune_best_time_ns",
			Help: "Fastest solver time observed so far, in nanoseconds.",
		}),
		coarse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mgtune_coarse_solve_steps",
			Help: "Coarse solve steps of the latest trial.",
		}),
		levels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mgtune_levels",
			Help: "Multigrid levels of the latest trial.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mgtune_search_failures_total",
			Help: "Searches aborted, by cause.",
		}, []string{"cause"}),
		wallClock: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mgtune_trial_wall_seconds",
			Help:    "Wall-clock duration of one trial including process start-up.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
	m.registry.MustRegister(m.trials, m.trialTime, m.bestTime, m.coarse, m.levels, m.failures, m.wallClock)
	return m
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and embedding
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(e tuner.TrialEvent) {
	m.trials.WithLabelValues(string(e.Direction)).Inc()
	m.trialTime.Observe(e.Measurement.Time)
	m.coarse.Set(e.Settings.CoarseSolve)
	m.levels.Set(float64(e.Settings.Levels))
	m.wallClock.Observe(e.Elapsed.Seconds())
	if e.ImprovedBest {
		m.bestTime.Set(e.Measurement.Time)
	}
}
