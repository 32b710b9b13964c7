// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

// Package metrics defines the Prometheus metrics of the importer.
//
// All metrics are registered on the default registry via promauto and
// exposed on /metrics. Covered areas:
//   - Import runs, files, records and batch write latency
//   - API endpoint latency and throughput
//   - WebSocket listeners and progress messages
//   - NATS event fan-out
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Import Metrics
	ImportRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_runs_total",
			Help: "Total number of import runs by final status",
		},
		[]string{"status"}, // "completed", "failed"
	)

	ImportRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "import_run_duration_seconds",
			Help:    "Duration of complete import runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	ImportRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "import_running",
			Help: "1 while an import run is active, 0 otherwise",
		},
	)

	ImportFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_files_total",
			Help: "Total number of imported source files by status",
		},
		[]string{"status"}, // "completed", "failed"
	)

	ImportRecordsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_records_inserted_total",
			Help: "Total number of documents written to the store",
		},
		[]string{"collection"},
	)

	ImportRecordsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_records_failed_total",
			Help: "Total number of documents rejected by the store",
		},
		[]string{"collection"},
	)

	ImportBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "import_batch_write_duration_seconds",
			Help:    "Duration of bulk insert calls in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
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
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Total number of progress messages skipped for closed or slow clients",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// NATS Event Metrics
	NATSEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_events_published_total",
			Help: "Total number of progress events published to NATS",
		},
		[]string{"event"},
	)

	NATSPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_publish_errors_total",
			Help: "Total number of failed NATS publishes",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordBatch records one bulk insert call.
func RecordBatch(collection string, inserted, failed int, duration time.Duration) {
	ImportBatchDuration.Observe(duration.Seconds())
	if inserted > 0 {
		ImportRecordsInserted.WithLabelValues(collection).Add(float64(inserted))
	}
	if failed > 0 {
		ImportRecordsFailed.WithLabelValues(collection).Add(float64(failed))
	}
}

// RecordImportFile records the outcome of one source file.
func RecordImportFile(err error) {
	if err != nil {
		ImportFilesTotal.WithLabelValues("failed").Inc()
		return
	}
	ImportFilesTotal.WithLabelValues("completed").Inc()
}

// RecordImportRun records the outcome of a finished run.
func RecordImportRun(status string, duration time.Duration) {
	ImportRunsTotal.WithLabelValues(status).Inc()
	ImportRunDuration.Observe(duration.Seconds())
}

// SetImportRunning flips the running gauge.
func SetImportRunning(running bool) {
	if running {
		ImportRunning.Set(1)
		return
	}
	ImportRunning.Set(0)
}
