package transport

import (
	"context"
	"io"

	"github.com/rhuss/askdoc/pkg/api"
)

// DocumentService is the contract between the front ends and the engine.
// Implementations return *api.APIError values for failures.
type DocumentService interface {
	// Upload replaces the active document. body is read to completion.
	Upload(ctx context.Context, name, contentType string, body io.Reader) (*api.Document, error)

	// Ask answers a question from the active document.
	Ask(ctx context.Context, q *api.Query) (*api.Answer, error)

	// Clear removes the active document. Clearing an empty store succeeds.
	Clear(ctx context.Context) error

	// Status reports the active document.
	Status(ctx context.Context) (*api.DocumentStatus, error)
}

// ReadinessChecker reports whether the service can handle requests.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// ClearResult is the body returned after the document has been cleared.
type ClearResult struct {
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}
