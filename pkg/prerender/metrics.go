package prerender

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Page outcomes recorded by the pages_total metric.
const (
	outcomeRendered  = "rendered"
	outcomeErrorPage = "error_page"
	outcomeFallback  = "fallback"
	outcomeSkipped   = "skipped"
)

// metrics holds the Prometheus metrics of prerender runs.
type metrics struct {
	pagesTotal   *prometheus.CounterVec
	hookDuration *prometheus.HistogramVec
	filesWritten *prometheus.CounterVec
	inFlight     prometheus.Gauge
	runDuration  prometheus.Histogram
}

// defaultMetrics is registered on prometheus.DefaultRegisterer on first
// use.
var (
	defaultMetrics     *metrics
	defaultMetricsOnce sync.Once
)

// metricsFor returns the metrics registered on reg. A nil reg uses the
// default registerer, where the metrics are registered once per process.
func metricsFor(reg prometheus.Registerer) *metrics {
	if reg == nil {
		defaultMetricsOnce.Do(func() {
			defaultMetrics = newMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		pagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ssr",
			Subsystem: "prerender",
			Name:      "pages_total",
			Help:      "Total number of page contexts processed, by outcome",
		}, []string{"outcome"}),

		hookDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ssr",
			Subsystem: "prerender",
			Name:      "hook_duration_seconds",
			Help:      "Duration of prerender(), onBeforePrerender() and page rendering",
			Buckets:   prometheus.DefBuckets,
		}, []string{"hook"}),

		filesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ssr",
			Subsystem: "prerender",
			Name:      "files_written_total",
			Help:      "Total number of files written, by kind",
		}, []string{"kind"}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ssr",
			Subsystem: "prerender",
			Name:      "in_flight",
			Help:      "Number of hook calls and writes holding a limiter permit",
		}),

		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ssr",
			Subsystem: "prerender",
			Name:      "run_duration_seconds",
			Help:      "Duration of prerender runs",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
	}
}
