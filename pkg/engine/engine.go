package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/rhuss/askdoc/pkg/api"
	"github.com/rhuss/askdoc/pkg/debug"
	"github.com/rhuss/askdoc/pkg/docstore"
	"github.com/rhuss/askdoc/pkg/generation"
	"github.com/rhuss/askdoc/pkg/transport"
)

// Documents is the single-document store the engine answers from.
// *docstore.Store implements it.
type Documents interface {
	Store(ctx context.Context, up docstore.Upload) (*api.Document, error)
	Clear(ctx context.Context) error
	Retrieve(ctx context.Context, q api.Query) ([]string, error)
	Status() api.DocumentStatus
	Ping(ctx context.Context) error
}

// Engine answers questions about the active document.
type Engine struct {
	docs      Documents
	generator generation.Generator
	cfg       Config
}

// Ensure Engine implements the transport contracts at compile time.
var (
	_ transport.DocumentService  = (*Engine)(nil)
	_ transport.ReadinessChecker = (*Engine)(nil)
	_ Documents                  = (*docstore.Store)(nil)
)

// New creates a new Engine. Neither the document store nor the generator
// may be nil.
func New(docs Documents, g generation.Generator, cfg Config) (*Engine, error) {
	if docs == nil {
		return nil, errors.New("engine: document store must not be nil")
	}
	if g == nil {
		return nil, errors.New("engine: generator must not be nil")
	}
	return &Engine{docs: docs, generator: g, cfg: cfg}, nil
}

// Upload replaces the active document with the uploaded one.
func (e *Engine) Upload(ctx context.Context, name, contentType string, body io.Reader) (*api.Document, error) {
	if name == "" {
		return nil, api.NewInvalidRequestError("document", "document file name is required")
	}
	doc, err := e.docs.Store(ctx, docstore.Upload{Name: name, ContentType: contentType, Body: body})
	if err != nil {
		return nil, toAPIError(err)
	}
	return doc, nil
}

// Ask retrieves context for q from the active document and generates an
// answer. A failed generation leaves the document untouched, so the caller
// may retry.
func (e *Engine) Ask(ctx context.Context, q *api.Query) (*api.Answer, error) {
	if q == nil {
		return nil, api.NewInvalidRequestError("text", "query is required")
	}
	if apiErr := api.ValidateQuery(q, e.cfg.validation()); apiErr != nil {
		return nil, apiErr
	}

	start := time.Now()
	texts, err := e.docs.Retrieve(ctx, *q)
	if err != nil {
		return nil, toAPIError(err)
	}
	retrieved := time.Since(start)

	answer, err := e.generator.Predict(ctx, q.Text, texts)
	if err != nil {
		slog.Warn("generation failed", "strategy", q.Strategy, "texts", len(texts), "error", err)
		return nil, toAPIError(err)
	}

	debug.Log("generation", "answered query",
		"strategy", q.Strategy,
		"texts", len(texts),
		"retrieval", retrieved,
		"total", time.Since(start),
	)

	return &api.Answer{
		Object:   "answer",
		Query:    q.Text,
		Strategy: q.Strategy,
		Answer:   answer,
		Sources:  texts,
	}, nil
}

// Clear removes the active document. It succeeds on an empty store.
func (e *Engine) Clear(ctx context.Context) error {
	return toAPIError(e.docs.Clear(ctx))
}

// Status reports the active document.
func (e *Engine) Status(_ context.Context) (*api.DocumentStatus, error) {
	status := e.docs.Status()
	return &status, nil
}

// Ready reports whether the index backend is reachable.
func (e *Engine) Ready(ctx context.Context) error {
	return toAPIError(e.docs.Ping(ctx))
}
