package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the viewer.
type Metrics struct {
	// Remote query metrics.
	QueryRequests *prometheus.CounterVec   // labels: outcome={success,error,empty}
	QueryDuration *prometheus.HistogramVec // labels: kind={points,tracks}
	QueryCache    *prometheus.CounterVec   // labels: result={hit,miss}

	// Session metrics.
	SessionInits *prometheus.CounterVec // labels: mode={token,interactive}

	// Workflow metrics.
	FeaturesFetched   prometheus.Counter
	TracksSynthesized prometheus.Counter
	RefreshFailures   prometheus.Counter
	WorkflowReady     prometheus.Gauge

	// Rendering metrics.
	RenderDuration *prometheus.HistogramVec // labels: format={html,raster}

	// Sink metrics.
	TracksPublished prometheus.Counter
}

// NewMetrics creates and registers all viewer metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.QueryRequests,
		m.QueryDuration,
		m.QueryCache,
		m.SessionInits,
		m.FeaturesFetched,
		m.TracksSynthesized,
		m.RefreshFailures,
		m.WorkflowReady,
		m.RenderDuration,
		m.TracksPublished,
	)
	return m
}

// NewUnregisteredMetrics creates Metrics without registering them with
// any registry, for one-shot tools that never serve /metrics.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates Metrics without registering them, so
// parallel tests avoid "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return NewUnregisteredMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		QueryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_viewer",
			Name:      "query_requests_total",
			Help:      "Remote feature-query requests by outcome.",
		}, []string{"outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storm_viewer",
			Name:      "query_duration_seconds",
			Help:      "Remote query round-trip duration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		QueryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_viewer",
			Name:      "query_cache_total",
			Help:      "Query result cache lookups by result.",
		}, []string{"result"}),
		SessionInits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_viewer",
			Name:      "session_inits_total",
			Help:      "Session initializations by authentication mode.",
		}, []string{"mode"}),
		FeaturesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_viewer",
			Name:      "features_fetched_total",
			Help:      "Point features fetched from the remote service.",
		}),
		TracksSynthesized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_viewer",
			Name:      "tracks_synthesized_total",
			Help:      "Track line features produced.",
		}),
		RefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_viewer",
			Name:      "refresh_failures_total",
			Help:      "Failed workflow refresh attempts.",
		}),
		WorkflowReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storm_viewer",
			Name:      "workflow_ready",
			Help:      "1 once the workflow has loaded data, 0 before.",
		}),
		RenderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storm_viewer",
			Name:      "render_duration_seconds",
			Help:      "Map rendering duration by output format.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"format"}),
		TracksPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_viewer",
			Name:      "tracks_published_total",
			Help:      "Track features published to the Kafka sink.",
		}),
	}
}
