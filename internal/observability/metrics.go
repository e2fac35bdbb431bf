package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// clustering pipeline.
type Metrics struct {
	EventsConsumed  prometheus.Counter
	EventsInvalid   prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Clustering run metrics.
	RunsTotal            prometheus.Counter
	RunDuration          prometheus.Histogram
	CatalogSize          prometheus.Histogram
	PairsComputed        prometheus.Counter
	ClustersProduced     prometheus.Counter
	ClustersDroppedSmall prometheus.Counter

	// Covariate-join metrics.
	CovariateRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	CovariateCache    *prometheus.CounterVec // labels: result={hit,miss}
	CovariateDuration prometheus.Histogram
	CovariateEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.EventsConsumed,
		m.EventsInvalid,
		m.PipelineRunning,
		m.RunsTotal,
		m.RunDuration,
		m.CatalogSize,
		m.PairsComputed,
		m.ClustersProduced,
		m.ClustersDroppedSmall,
		m.CovariateRequests,
		m.CovariateCache,
		m.CovariateDuration,
		m.CovariateEnabled,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EventsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bigday",
			Name:      "events_consumed_total",
			Help:      "Total catalog events read from the source topic.",
		}),
		EventsInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bigday",
			Name:      "events_invalid_total",
			Help:      "Total source records that failed parsing or normalization.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bigday",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bigday",
			Name:      "clustering_runs_total",
			Help:      "Total completed clustering runs.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bigday",
			Name:      "clustering_run_duration_seconds",
			Help:      "Duration of one distance-linkage-aggregate pass.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 1200},
		}),
		CatalogSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bigday",
			Name:      "catalog_size_events",
			Help:      "Number of events per clustering run.",
			Buckets:   []float64{10, 100, 1000, 5000, 10000, 20000, 40000, 60000},
		}),
		PairsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bigday",
			Name:      "pairs_computed_total",
			Help:      "Total pairwise dissimilarities computed across clustering runs.",
		}),
		ClustersProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bigday",
			Name:      "clusters_produced_total",
			Help:      "Total Big-Day clusters published to the sink topic.",
		}),
		ClustersDroppedSmall: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bigday",
			Name:      "clusters_dropped_small_total",
			Help:      "Clusters below the minimum event count, dropped by design.",
		}),
		CovariateRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bigday",
			Name:      "covariate_requests_total",
			Help:      "Covariate provider requests by outcome.",
		}, []string{"outcome"}),
		CovariateCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bigday",
			Name:      "covariate_cache_total",
			Help:      "Covariate cache lookups by result.",
		}, []string{"result"}),
		CovariateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bigday",
			Name:      "covariate_request_duration_seconds",
			Help:      "Covariate provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		CovariateEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bigday",
			Name:      "covariate_enabled",
			Help:      "1 when the covariate join is enabled, 0 otherwise.",
		}),
	}
}
