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
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
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

	// ProviderAttemptDuration tracks individual Gemini attempts.
	ProviderAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gemini_attempt_duration_seconds",
			Help:    "Duration of a single Gemini generateContent attempt",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 45},
		},
		[]string{"outcome"},
	)

	// ProviderRequestsTotal tracks completed GenerateContent calls after retries.
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemini_requests_total",
			Help: "Gemini requests by final outcome",
		},
		[]string{"outcome"},
	)

	// ProviderRetriesTotal tracks retries scheduled after a failed attempt.
	ProviderRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemini_retries_total",
			Help: "Gemini retries by failure kind",
		},
		[]string{"kind"},
	)

	// ConversationsTotal tracks conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
	)

	// ConversationsActive tracks conversations currently held in memory.
	ConversationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conversations_active",
			Help: "Number of conversations held in memory",
		},
	)

	// MessagesTotal tracks messages appended.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages appended",
		},
		[]string{"role"},
	)

	// MessagesTrimmedTotal tracks messages dropped by history trimming.
	MessagesTrimmedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_trimmed_total",
			Help: "Messages removed to keep conversations within the history bound",
		},
	)

	// DocumentsExtractedTotal tracks document extraction outcomes.
	DocumentsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_extracted_total",
			Help: "Document extractions by file type and outcome",
		},
		[]string{"file_type", "outcome"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordProviderAttempt records one Gemini attempt.
func RecordProviderAttempt(outcome string, duration float64) {
	ProviderAttemptDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordProviderResult records the final outcome of a GenerateContent call.
func RecordProviderResult(outcome string) {
	ProviderRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordRetry records a scheduled retry.
func RecordRetry(kind string) {
	ProviderRetriesTotal.WithLabelValues(kind).Inc()
}

// RecordMessage records an appended message.
func RecordMessage(role string) {
	MessagesTotal.WithLabelValues(role).Inc()
}

// RecordExtraction records a document extraction.
func RecordExtraction(fileType, outcome string) {
	DocumentsExtractedTotal.WithLabelValues(fileType, outcome).Inc()
}
