// Package metrics wraps the Prometheus collectors for the runbook engine,
// following the same registry-per-process + promhttp handler pattern the
// rest of the pack uses for its own control planes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the Prometheus collectors for the execution gate, the
// pack manager and the search index.
type Metrics struct {
	registry *prometheus.Registry

	stepsTotal       *prometheus.CounterVec
	runbooksTotal    *prometheus.CounterVec
	lockContention   *prometheus.CounterVec
	validationErrors *prometheus.CounterVec

	stepDuration    *prometheus.HistogramVec
	runbookDuration prometheus.Histogram
	lockWaitMs      prometheus.Histogram
	searchLatencyMs *prometheus.HistogramVec

	activeRunbooks  prometheus.Gauge
	activePacks     *prometheus.GaugeVec
	searchIndexSize *prometheus.GaugeVec

	uptime prometheus.GaugeFunc
}

var startTime = time.Now()

var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var m *Metrics

// Init initializes the package-level Metrics registry. Safe to call once
// at process start; subsequent calls are no-ops.
func Init(namespace string, buckets []float64) {
	if m != nil {
		return
	}
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &Metrics{
		registry: registry,

		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Step outcomes processed by the execution gate.",
		}, []string{"verb", "outcome"}),

		runbooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runbooks_total",
			Help:      "Runbook executions by final status.",
		}, []string{"status"}),

		lockContention: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contention_total",
			Help:      "Advisory lock contention events by entity type.",
		}, []string{"entity_type"}),

		validationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Schema validation errors by kind.",
		}, []string{"kind"}),

		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_milliseconds",
			Help:      "Duration of a single step execution in milliseconds.",
			Buckets:   buckets,
		}, []string{"verb"}),

		runbookDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "runbook_duration_milliseconds",
			Help:      "Wall-clock duration of a full gate invocation in milliseconds.",
			Buckets:   buckets,
		}),

		lockWaitMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_milliseconds",
			Help:      "Time spent acquiring advisory locks in milliseconds.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),

		searchLatencyMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_query_milliseconds",
			Help:      "Latency of search index queries in milliseconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 25, 50},
		}, []string{"entity_type", "mode"}),

		activeRunbooks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runbooks",
			Help:      "Number of runbooks currently in Executing status.",
		}),

		activePacks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_packs",
			Help:      "Number of packs in each lifecycle state.",
		}, []string{"state"}),

		searchIndexSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "search_index_documents",
			Help:      "Number of documents currently indexed, per entity type.",
		}, []string{"entity_type"}),
	}

	pm.uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Time since the runbookd process started.",
	}, func() float64 {
		return time.Since(startTime).Seconds()
	})

	registry.MustRegister(
		pm.stepsTotal,
		pm.runbooksTotal,
		pm.lockContention,
		pm.validationErrors,
		pm.stepDuration,
		pm.runbookDuration,
		pm.lockWaitMs,
		pm.searchLatencyMs,
		pm.activeRunbooks,
		pm.activePacks,
		pm.searchIndexSize,
		pm.uptime,
	)

	m = pm
}

// RecordStep records a single step outcome and its duration.
func RecordStep(verb, outcome string, durationMs int64) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(verb, outcome).Inc()
	m.stepDuration.WithLabelValues(verb).Observe(float64(durationMs))
}

// RecordRunbook records a completed gate invocation.
func RecordRunbook(status string, durationMs int64) {
	if m == nil {
		return
	}
	m.runbooksTotal.WithLabelValues(status).Inc()
	m.runbookDuration.Observe(float64(durationMs))
}

// RecordLockContention records a failed try-lock acquisition.
func RecordLockContention(entityType string) {
	if m == nil {
		return
	}
	m.lockContention.WithLabelValues(entityType).Inc()
}

// RecordLockWait records time spent acquiring advisory locks.
func RecordLockWait(waitMs int64) {
	if m == nil {
		return
	}
	m.lockWaitMs.Observe(float64(waitMs))
}

// RecordValidationError records a schema validation error by kind.
func RecordValidationError(kind string) {
	if m == nil {
		return
	}
	m.validationErrors.WithLabelValues(kind).Inc()
}

// RecordSearch records the latency of a search index query.
func RecordSearch(entityType, mode string, durationMs float64) {
	if m == nil {
		return
	}
	m.searchLatencyMs.WithLabelValues(entityType, mode).Observe(durationMs)
}

// SetActiveRunbooks sets the gauge of runbooks currently executing.
func SetActiveRunbooks(n int) {
	if m == nil {
		return
	}
	m.activeRunbooks.Set(float64(n))
}

// SetActivePacks sets the gauge of packs in a given lifecycle state.
func SetActivePacks(state string, n int) {
	if m == nil {
		return
	}
	m.activePacks.WithLabelValues(state).Set(float64(n))
}

// SetSearchIndexSize sets the document-count gauge for an entity type.
func SetSearchIndexSize(entityType string, n int) {
	if m == nil {
		return
	}
	m.searchIndexSize.WithLabelValues(entityType).Set(float64(n))
}

// Handler returns an HTTP handler for Prometheus metrics scraping.
func Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry, for custom collectors.
func Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
