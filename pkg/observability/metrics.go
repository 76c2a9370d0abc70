// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the askdoc service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LLMBuckets defines histogram buckets suited for model inference latencies,
// ranging from 50ms to 120s.
var LLMBuckets = []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// RequestBuckets covers HTTP handling, from fast status reads to uploads.
var RequestBuckets = []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, route, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdoc_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdoc_request_duration_seconds",
			Help:    "Request duration",
			Buckets: RequestBuckets,
		},
		[]string{"method", "route"},
	)

	// IngestionsTotal counts document ingestions by outcome.
	IngestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdoc_ingestions_total",
			Help: "Document ingestions",
		},
		[]string{"status"},
	)

	// IngestionDuration records the time from upload to publish.
	IngestionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdoc_ingestion_duration_seconds",
			Help:    "Ingestion duration",
			Buckets: LLMBuckets,
		},
	)

	// ActiveChunks tracks the number of chunks of the active document.
	ActiveChunks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askdoc_active_chunks",
			Help: "Chunks of the active document",
		},
	)

	// DocumentGeneration is the generation of the most recent store attempt.
	DocumentGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askdoc_document_generation",
			Help: "Document generation counter",
		},
	)

	// RetrievalsTotal counts retrievals by strategy and outcome.
	RetrievalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdoc_retrievals_total",
			Help: "Retrievals",
		},
		[]string{"strategy", "status"},
	)

	// ProviderRequestsTotal counts calls to the embedding and generation providers.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdoc_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "operation", "status"},
	)

	// ProviderLatency records provider latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdoc_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "operation"},
	)

	// ProviderTokensTotal counts tokens reported by providers by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdoc_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "operation", "direction"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		IngestionsTotal,
		IngestionDuration,
		ActiveChunks,
		DocumentGeneration,
		RetrievalsTotal,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
	)
}

// Status returns the metric status label for err.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveProvider records the outcome and latency of a provider call that
// started at start.
func ObserveProvider(provider, operation string, start time.Time, err error) {
	ProviderRequestsTotal.WithLabelValues(provider, operation, Status(err)).Inc()
	ProviderLatency.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}
