// Package metrics exposes Prometheus instruments for imports, exports and
// record mutations. All helpers are no-ops until Init has run.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "inventory_"

	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
)

var (
	registerOnce sync.Once
	registry     *prometheus.Registry

	importRuns     *prometheus.CounterVec
	importRows     *prometheus.CounterVec
	importDuration *prometheus.HistogramVec
	importRejected prometheus.Counter

	exportsTotal *prometheus.CounterVec
	mutations    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
)

// Init creates and registers the instruments on a dedicated registry, which
// also carries the Go runtime and process collectors.
func Init() {
	registerOnce.Do(func() {
		registry = prometheus.NewRegistry()

		importRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_runs_total",
				Help: "Import runs by entity and mode",
			},
			[]string{"entity", "mode"},
		)
		importRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_rows_total",
				Help: "Imported rows by entity and outcome",
			},
			[]string{"entity", "outcome"},
		)
		importDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "import_duration_seconds",
				Help:    "Import run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entity"},
		)
		importRejected = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_busy_rejections_total",
				Help: "Imports rejected because every slot was busy",
			},
		)
		exportsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exports_total",
				Help: "Exports by entity and format",
			},
			[]string{"entity", "format"},
		)
		mutations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "record_mutations_total",
				Help: "Single-record writes by entity, operation and result",
			},
			[]string{"entity", "op", "result"},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by method, route and status class",
			},
			[]string{"method", "route", "status"},
		)
		httpDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route"},
		)

		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			importRuns,
			importRows,
			importDuration,
			importRejected,
			exportsTotal,
			mutations,
			httpRequests,
			httpDuration,
		)
	})
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveImport records one finished import run.
func ObserveImport(entity string, succeeded, failed int, dryRun bool, d time.Duration) {
	if importRuns == nil {
		return
	}
	mode := "commit"
	if dryRun {
		mode = "dry_run"
	}
	importRuns.WithLabelValues(entity, mode).Inc()
	importRows.WithLabelValues(entity, outcomeSucceeded).Add(float64(succeeded))
	importRows.WithLabelValues(entity, outcomeFailed).Add(float64(failed))
	importDuration.WithLabelValues(entity).Observe(d.Seconds())
}

// IncImportBusy counts an import turned away by the concurrency limiter.
func IncImportBusy() {
	if importRejected != nil {
		importRejected.Inc()
	}
}

// IncExport counts one export download.
func IncExport(entity, format string) {
	if exportsTotal != nil {
		exportsTotal.WithLabelValues(entity, format).Inc()
	}
}

// ObserveMutation counts a single-record create, update or delete.
func ObserveMutation(entity, op string, err error) {
	if mutations == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	mutations.WithLabelValues(entity, op, result).Inc()
}

// ObserveHTTP records one served request. route is the matched pattern, not
// the raw path, to keep label cardinality bounded.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	if httpRequests == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status/100)+"xx").Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
