// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Pipeline metrics
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	RecordsProcessed *prometheus.CounterVec
	RecordsSkipped   *prometheus.CounterVec

	// Fetch metrics
	FetchLatency  *prometheus.HistogramVec
	FetchRetries  *prometheus.CounterVec
	FetchFailures *prometheus.CounterVec

	// Storage metrics
	StoreErrors *prometheus.CounterVec

	// API metrics
	APIRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_market_etl"
	}

	return &Metrics{
		// Pipeline metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by source and outcome",
		}, []string{"source", "status"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs by source",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		RecordsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "records_processed_total",
			Help:      "Total number of records upserted by source",
		}, []string{"source"}),
		RecordsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "records_skipped_total",
			Help:      "Total number of records dropped by validation by source",
		}, []string{"source"}),

		// Fetch metrics
		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "latency_seconds",
			Help:      "Latency of source fetches including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		FetchRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Total number of fetch retry attempts by source",
		}, []string{"source"}),
		FetchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "failures_total",
			Help:      "Total number of fetches that exhausted retries by source",
		}, []string{"source"}),

		// Storage metrics
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total number of storage errors by store and operation",
		}, []string{"store", "operation"}),

		// API metrics
		APIRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests by route and status code",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRun records a finished pipeline run.
func RecordRun(source, status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(source, status).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordRecordsProcessed adds to the per-source processed counter.
func RecordRecordsProcessed(source string, n int) {
	DefaultMetrics.RecordsProcessed.WithLabelValues(source).Add(float64(n))
}

// RecordRecordSkipped increments the per-source validation drop counter.
func RecordRecordSkipped(source string) {
	DefaultMetrics.RecordsSkipped.WithLabelValues(source).Inc()
}

// RecordFetch records one completed fetch, successful or not.
func RecordFetch(source string, seconds float64) {
	DefaultMetrics.FetchLatency.WithLabelValues(source).Observe(seconds)
}

// RecordFetchRetry increments the retry counter for a source.
func RecordFetchRetry(source string) {
	DefaultMetrics.FetchRetries.WithLabelValues(source).Inc()
}

// RecordFetchFailure increments the exhausted-retries counter for a source.
func RecordFetchFailure(source string) {
	DefaultMetrics.FetchFailures.WithLabelValues(source).Inc()
}

// RecordStoreError increments the storage error counter.
func RecordStoreError(store, operation string) {
	DefaultMetrics.StoreErrors.WithLabelValues(store, operation).Inc()
}
