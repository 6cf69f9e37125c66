// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ChatOperationDuration tracks composite chat operation duration.
	ChatOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_operation_duration_seconds",
			Help:    "Composite chat operation duration",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "status"},
	)

	// MessagesTotal tracks messages sent through the composer pipeline.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total messages sent",
		},
		[]string{"content_type"},
	)

	// ThreadsCreatedTotal tracks new threads created remotely.
	ThreadsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_threads_created_total",
			Help: "Total threads created",
		},
		[]string{"type"},
	)

	// StoreDroppedMutations tracks defensive no-ops in the thread store,
	// typically push events for threads not loaded locally.
	StoreDroppedMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_store_dropped_mutations_total",
			Help: "Store mutations dropped for unknown thread ids",
		},
		[]string{"command"},
	)

	// LiveChannelConnected tracks whether the push connection is up.
	LiveChannelConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_live_channel_connected",
			Help: "1 when the live push channel is connected",
		},
	)

	// LiveEventsTotal tracks events received on the live channel.
	LiveEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_live_events_total",
			Help: "Live channel events received",
		},
		[]string{"event", "status"},
	)

	// TranscriptionDuration tracks audio transcription upload duration.
	TranscriptionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_transcription_duration_seconds",
			Help:    "Audio transcription request duration",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordOperation records metrics for a composite chat operation.
func RecordOperation(operation, status string, duration float64) {
	ChatOperationDuration.WithLabelValues(operation, status).Observe(duration)
}

// RecordTranscription records metrics for a transcription upload.
func RecordTranscription(status string, duration float64) {
	TranscriptionDuration.WithLabelValues(status).Observe(duration)
}
