package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/rhuss/askdoc/pkg/api"
	"github.com/rhuss/askdoc/pkg/debug"
	"github.com/rhuss/askdoc/pkg/observability"
	"github.com/rhuss/askdoc/pkg/transport"
)

// documentField is the multipart form field carrying the uploaded file.
const documentField = "document"

// Adapter serves the askdoc API over HTTP.
// It routes requests to the DocumentService and serializes results.
type Adapter struct {
	service  transport.DocumentService
	ready    transport.ReadinessChecker // nil means always ready
	inflight *transport.InFlightRegistry
	uploads  atomic.Uint64
	mux      *http.ServeMux
	config   Config
	mw       []transport.Middleware
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr string

	// MaxBodySize bounds JSON request bodies.
	MaxBodySize int64

	// MaxUploadSize bounds the multipart upload body.
	MaxUploadSize int64

	ShutdownTimeout int // seconds

	// Metrics enables request metrics on the API routes.
	Metrics bool
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     1 << 20,  // 1 MB
		MaxUploadSize:   50 << 20, // 50 MB
		ShutdownTimeout: 30,
		Metrics:         true,
	}
}

// NewAdapter creates an HTTP adapter for the given service. When the service
// also implements transport.ReadinessChecker, GET /readyz reports its result.
// Middleware wraps every route in the given order.
func NewAdapter(service transport.DocumentService, cfg Config, middlewares ...transport.Middleware) *Adapter {
	a := &Adapter{
		service:  service,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
		mw:       middlewares,
	}
	if rc, ok := service.(transport.ReadinessChecker); ok {
		a.ready = rc
	}

	a.mux.HandleFunc("POST /upload_document", a.handleUpload)
	a.mux.HandleFunc("POST /query_document", a.handleQuery)
	a.mux.HandleFunc("DELETE /clear_document", a.handleClear)
	a.mux.HandleFunc("GET /document", a.handleStatus)
	a.mux.HandleFunc("GET /healthz", a.handleHealth)
	a.mux.HandleFunc("GET /readyz", a.handleReady)

	return a
}

// Handle mounts an additional handler, such as /metrics or /mcp, on the
// adapter's mux.
func (a *Adapter) Handle(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

// Handler returns the http.Handler for this adapter with the middleware
// chain applied. Use this to integrate with an http.Server or test with
// httptest.
func (a *Adapter) Handler() http.Handler {
	var h http.Handler = a.mux
	if a.config.Metrics {
		// Innermost, so the matched route pattern is visible.
		h = observability.MetricsMiddleware(h)
	}
	if len(a.mw) > 0 {
		h = transport.Chain(a.mw...)(h)
	}
	return h
}

// handleUpload handles POST /upload_document. The file is streamed from the
// multipart body into the document store without buffering it in memory.
func (a *Adapter) handleUpload(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be multipart/form-data"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxUploadSize)
	mr, err := r.MultipartReader()
	if err != nil {
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid multipart body: "+err.Error()))
		return
	}

	for {
		part, err := mr.NextPart()
		if err != nil {
			if a.writeTooLarge(w, err) {
				return
			}
			if errors.Is(err, io.EOF) {
				transport.WriteAPIError(w, api.NewInvalidRequestError(documentField, "multipart field \"document\" is required"))
				return
			}
			transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid multipart body: "+err.Error()))
			return
		}
		if part.FormName() != documentField {
			part.Close()
			continue
		}

		a.upload(w, r, part.FileName(), part.Header.Get("Content-Type"), part)
		part.Close()
		return
	}
}

// upload hands the part to the service. The upload is registered in the
// in-flight registry so that a concurrent clear can cancel it. Registry keys
// are assigned here, never taken from the client.
func (a *Adapter) upload(w http.ResponseWriter, r *http.Request, name, contentType string, body io.Reader) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	key := strconv.FormatUint(a.uploads.Add(1), 10)
	a.inflight.Register(key, cancel)
	defer a.inflight.Remove(key)
	debug.Log("transport", "upload started", "upload", key, "request_id", transport.RequestIDFromContext(ctx), "name", name)

	br := &bodyReader{r: body}
	doc, err := a.service.Upload(ctx, name, contentType, br)
	if err != nil {
		if br.err != nil && a.writeTooLarge(w, br.err) {
			return
		}
		transport.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// writeTooLarge writes a 413 response when err stems from the upload limit.
func (a *Adapter) writeTooLarge(w http.ResponseWriter, err error) bool {
	var maxBytesErr *http.MaxBytesError
	if !errors.As(err, &maxBytesErr) {
		return false
	}
	transport.WriteErrorResponse(w,
		api.NewInvalidRequestError("document", fmt.Sprintf("document too large (max %d bytes)", a.config.MaxUploadSize)),
		http.StatusRequestEntityTooLarge,
	)
	return true
}

// handleQuery handles POST /query_document.
func (a *Adapter) handleQuery(w http.ResponseWriter, r *http.Request) {
	// Validate Content-Type.
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, _ := mime.ParseMediaType(ct); mediaType != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return
		}
	}

	// Limit body size.
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var q api.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return
	}

	answer, err := a.service.Ask(r.Context(), &q)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// handleClear handles DELETE /clear_document. Uploads still in progress are
// cancelled first so they cannot publish after the clear.
func (a *Adapter) handleClear(w http.ResponseWriter, r *http.Request) {
	if n := a.inflight.CancelAll(); n > 0 {
		debug.Log("transport", "cancelled in-flight uploads", "count", n)
	}

	if err := a.service.Clear(r.Context()); err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transport.ClearResult{Object: "document.deleted", Deleted: true})
}

// handleStatus handles GET /document.
func (a *Adapter) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.service.Status(r.Context())
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *Adapter) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func (a *Adapter) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		if err := a.ready.Ready(r.Context()); err != nil {
			transport.WriteError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// bodyReader remembers the first read error so that a size limit hit deep
// inside ingestion can still be reported as 413.
type bodyReader struct {
	r   io.Reader
	err error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF && b.err == nil {
		b.err = err
	}
	return n, err
}
