package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry without panicking.
func TestMetricsRegistered(t *testing.T) {
	expected := map[string]bool{
		"askdoc_requests_total":             false,
		"askdoc_request_duration_seconds":   false,
		"askdoc_ingestions_total":           false,
		"askdoc_ingestion_duration_seconds": false,
		"askdoc_active_chunks":              false,
		"askdoc_document_generation":        false,
		"askdoc_retrievals_total":           false,
		"askdoc_provider_requests_total":    false,
		"askdoc_provider_latency_seconds":   false,
		"askdoc_provider_tokens_total":      false,
	}

	// Vectors only appear after their first observation.
	RequestsTotal.WithLabelValues("GET", "GET /healthz", "2xx").Inc()
	RequestDuration.WithLabelValues("GET", "GET /healthz").Observe(0.1)
	IngestionsTotal.WithLabelValues("ok").Inc()
	IngestionDuration.Observe(0.5)
	RetrievalsTotal.WithLabelValues("SIMILAR", "ok").Inc()
	ProviderRequestsTotal.WithLabelValues("hash", "embed", "ok").Inc()
	ProviderLatency.WithLabelValues("hash", "embed").Observe(0.1)
	ProviderTokensTotal.WithLabelValues("openai", "generate", "input").Add(10)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}

	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

// TestMiddlewareRecordsRequestCount verifies that the middleware increments
// the request counter with the matched route pattern.
func TestMiddlewareRecordsRequestCount(t *testing.T) {
	before := counterValue(t, RequestsTotal, "GET", "GET /document", "2xx")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /document", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := MetricsMiddleware(mux)

	req := httptest.NewRequest("GET", "/document", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	after := counterValue(t, RequestsTotal, "GET", "GET /document", "2xx")
	if after-before != 1 {
		t.Errorf("expected request count to increase by 1, got delta=%f", after-before)
	}
}

// TestMiddlewareUnmatchedRoute verifies requests outside a ServeMux get a
// fixed route label.
func TestMiddlewareUnmatchedRoute(t *testing.T) {
	before := histogramCount(t, RequestDuration, "POST", "unmatched")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/upload_document", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	after := histogramCount(t, RequestDuration, "POST", "unmatched")
	if after-before != 1 {
		t.Errorf("expected histogram sample count to increase by 1, got delta=%d", after-before)
	}
}

// TestMiddlewareCapturesStatusCode verifies that non-200 status codes are
// captured correctly in the status label.
func TestMiddlewareCapturesStatusCode(t *testing.T) {
	before := counterValue(t, RequestsTotal, "POST", "unmatched", "4xx")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	req := httptest.NewRequest("POST", "/query_document", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	after := counterValue(t, RequestsTotal, "POST", "unmatched", "4xx")
	if after-before != 1 {
		t.Errorf("expected 4xx count to increase by 1, got delta=%f", after-before)
	}
}

func TestObserveProvider(t *testing.T) {
	okBefore := counterValue(t, ProviderRequestsTotal, "test", "embed", "ok")
	errBefore := counterValue(t, ProviderRequestsTotal, "test", "embed", "error")
	latBefore := histogramCount(t, ProviderLatency, "test", "embed")

	ObserveProvider("test", "embed", time.Now(), nil)
	ObserveProvider("test", "embed", time.Now(), errors.New("boom"))

	if d := counterValue(t, ProviderRequestsTotal, "test", "embed", "ok") - okBefore; d != 1 {
		t.Errorf("ok delta = %f, want 1", d)
	}
	if d := counterValue(t, ProviderRequestsTotal, "test", "embed", "error") - errBefore; d != 1 {
		t.Errorf("error delta = %f, want 1", d)
	}
	if d := histogramCount(t, ProviderLatency, "test", "embed") - latBefore; d != 2 {
		t.Errorf("latency samples delta = %d, want 2", d)
	}
}

// TestStatusWriterFlush verifies that the statusWriter Flush method
// delegates to the underlying writer when it implements http.Flusher.
func TestStatusWriterFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	sw.Flush()

	if !rec.Flushed {
		t.Error("expected underlying writer to be flushed")
	}
}

// counterValue reads the current value of a CounterVec for the given labels.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// histogramCount reads the observation count from a HistogramVec.
func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}
