// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

// Package metrics exposes Prometheus collectors for the sync engine.
//
// Collectors are registered on the default registry through promauto and
// served by the /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync Session Metrics
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_session_duration_seconds",
			Help:    "Duration of sync sessions in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"source", "outcome"},
	)

	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_total",
			Help: "Records written by sync sessions",
		},
		[]string{"source", "operation"}, // operation: created, updated
	)

	SyncSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_sessions_total",
			Help: "Completed sync sessions by outcome",
		},
		[]string{"source", "outcome"}, // success, partial, failed, skipped
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful sync per source",
		},
		[]string{"source"},
	)

	SyncInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_in_progress",
			Help: "Whether a sync session is currently running (1) or not (0)",
		},
		[]string{"source"},
	)

	// Upsert Writer Metrics
	WriterBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "writer_batch_duration_seconds",
			Help:    "Duration of batch upserts in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	WriterBatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "writer_batch_failures_total",
			Help: "Batches rejected by the store",
		},
		[]string{"table"},
	)

	WriterBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "writer_batch_size",
			Help:    "Number of records per upsert batch",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 5000},
		},
	)

	// Vendor API Metrics
	APIClientRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_api_requests_total",
			Help: "Outbound vendor API requests by status class",
		},
		[]string{"source", "status"},
	)

	APIClientRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_api_retries_total",
			Help: "Retries of vendor API calls after 429 or transient errors",
		},
		[]string{"source", "reason"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Coordinator Metrics
	CoordinatorRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_runs_total",
			Help: "Daily coordinator runs by overall outcome",
		},
		[]string{"outcome"}, // ok, multi_status
	)

	// Bulk Loader Metrics
	BulkLoadRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_load_records_total",
			Help: "Records processed by the bulk loader",
		},
		[]string{"table", "result"}, // imported, failed
	)

	BulkLoadProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bulk_load_progress_percent",
			Help: "Progress of the current bulk load",
		},
		[]string{"table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordSyncSession records the outcome of one sync session. outcome is
// success, partial or failed.
func RecordSyncSession(source, outcome string, duration time.Duration, created, updated int) {
	SyncDuration.WithLabelValues(source, outcome).Observe(duration.Seconds())
	SyncSessions.WithLabelValues(source, outcome).Inc()
	SyncRecords.WithLabelValues(source, "created").Add(float64(created))
	SyncRecords.WithLabelValues(source, "updated").Add(float64(updated))
	if outcome == "success" {
		SyncLastSuccess.WithLabelValues(source).Set(float64(time.Now().Unix()))
	}
}

// RecordSkippedSource counts a source the coordinator skipped for missing credentials.
func RecordSkippedSource(source string) {
	SyncSessions.WithLabelValues(source, "skipped").Inc()
}

// RecordBatch records one writer batch.
func RecordBatch(table string, size int, duration time.Duration, err error) {
	WriterBatchSize.Observe(float64(size))
	WriterBatchDuration.WithLabelValues(table).Observe(duration.Seconds())
	if err != nil {
		WriterBatchFailures.WithLabelValues(table).Inc()
	}
}

// RecordAPIRequest records a vendor API response by status class.
func RecordAPIRequest(source string, statusCode int) {
	APIClientRequests.WithLabelValues(source, statusClass(statusCode)).Inc()
}

// RecordAPIRetry records a retried vendor request.
func RecordAPIRetry(source, reason string) {
	APIClientRetries.WithLabelValues(source, reason).Inc()
}

// RecordCircuitBreakerTransition updates breaker gauges on a state change.
func RecordCircuitBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordCoordinatorRun records a daily run.
func RecordCoordinatorRun(overallSuccess bool) {
	outcome := "ok"
	if !overallSuccess {
		outcome = "multi_status"
	}
	CoordinatorRuns.WithLabelValues(outcome).Inc()
}

// RecordBulkBatch records one bulk loader batch and the running percentage.
func RecordBulkBatch(table string, imported, failed int, percent float64) {
	BulkLoadRecords.WithLabelValues(table, "imported").Add(float64(imported))
	BulkLoadRecords.WithLabelValues(table, "failed").Add(float64(failed))
	BulkLoadProgress.WithLabelValues(table).Set(percent)
}

// RecordAPIRequestServed records an inbound API request.
func RecordAPIRequestServed(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusClassCode(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func statusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code == 429:
		return "429"
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func statusClassCode(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return [...]string{"1xx", "2xx", "3xx", "4xx", "5xx"}[code/100-1]
}
