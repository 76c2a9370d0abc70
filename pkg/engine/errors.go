package engine

import (
	"context"
	"errors"

	"github.com/rhuss/askdoc/pkg/api"
	"github.com/rhuss/askdoc/pkg/docstore"
	"github.com/rhuss/askdoc/pkg/embedding"
	"github.com/rhuss/askdoc/pkg/extract"
	"github.com/rhuss/askdoc/pkg/generation"
	"github.com/rhuss/askdoc/pkg/index"
	"github.com/rhuss/askdoc/pkg/retrieval"
)

// toAPIError converts a component error into an *api.APIError. Errors
// that already are API errors pass through unchanged.
func toAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	msg := err.Error()
	switch {
	// Cancellation wins over the component that happened to observe it.
	case errors.Is(err, context.Canceled):
		return api.NewServerError("request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return api.NewServerError("request timed out")
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return api.NewInvalidRequestError("document", msg)
	case errors.Is(err, retrieval.ErrUnknownStrategy):
		return api.NewInvalidRequestError("retrieve_strategy", msg)
	case errors.Is(err, docstore.ErrIngestion):
		return api.NewIngestionError(msg)
	case errors.Is(err, embedding.ErrEmbedding):
		return api.NewEmbeddingError(msg)
	case errors.Is(err, index.ErrIndex):
		return api.NewIndexError(msg)
	case errors.Is(err, generation.ErrGeneration):
		return api.NewModelError(msg)
	default:
		return api.NewServerError(msg)
	}
}
