package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wildfire"

// Metrics holds the Prometheus counters, histograms, and gauges for the analyzer.
type Metrics struct {
	// Remote gateway metrics.
	GatewayRequests *prometheus.CounterVec   // labels: operation, outcome={success,remote_error,timeout,transport_error,breaker_open}
	GatewayDuration *prometheus.HistogramVec // labels: operation
	BreakerState    *prometheus.GaugeVec     // labels: operation; 0 closed, 1 half-open, 2 open

	// Analysis run metrics.
	RunsTotal           *prometheus.CounterVec   // labels: outcome={completed,failed,cancelled,stale}
	PhaseDuration       *prometheus.HistogramVec // labels: phase
	StaleResultsDropped prometheus.Counter
	RunActive           prometheus.Gauge

	// Capture metrics.
	CaptureBytes prometheus.Histogram

	// Place search metrics.
	SearchRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	SearchCache    *prometheus.CounterVec // labels: result={hit,miss}
	SearchDuration prometheus.Histogram

	// Result publishing metrics.
	ResultsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all analyzer metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := build(true)

	prometheus.MustRegister(
		m.GatewayRequests,
		m.GatewayDuration,
		m.BreakerState,
		m.RunsTotal,
		m.PhaseDuration,
		m.StaleResultsDropped,
		m.RunActive,
		m.CaptureBytes,
		m.SearchRequests,
		m.SearchCache,
		m.SearchDuration,
		m.ResultsPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return build(false)
}

func build(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      help("Backend requests by operation and outcome."),
		}, []string{"operation", "outcome"}),
		GatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      help("Backend request duration in seconds."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"operation"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_breaker_state",
			Help:      help("Circuit breaker state per operation: 0 closed, 1 half-open, 2 open."),
		}, []string{"operation"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      help("Analysis runs by terminal outcome."),
		}, []string{"outcome"}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_phase_duration_seconds",
			Help:      help("Time spent in each analysis phase."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"phase"}),
		StaleResultsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_dropped_total",
			Help:      help("Completed runs whose result was discarded because a newer run or location superseded them."),
		}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analysis_run_active",
			Help:      help("1 while an analysis run is in flight, 0 otherwise."),
		}),
		CaptureBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_png_bytes",
			Help:      help("Size of encoded capture images."),
			Buckets:   prometheus.ExponentialBuckets(16<<10, 2, 10),
		}),
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      help("Place search requests by outcome."),
		}, []string{"outcome"}),
		SearchCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_total",
			Help:      help("Place search cache lookups by result."),
		}, []string{"result"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_api_duration_seconds",
			Help:      help("Geocoder API request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		ResultsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_published_total",
			Help:      help("Analysis results written to the result topic."),
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_publish_errors_total",
			Help:      help("Failed writes to the result topic."),
		}),
	}
}
