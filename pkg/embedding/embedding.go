// Package embedding maps text to fixed-size vectors. The same Embedder must
// be used for ingestion and for queries so that vectors are comparable.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrEmbedding is wrapped by every failure reported by an Embedder.
var ErrEmbedding = errors.New("embedding error")

// Embedder embeds text via an external service or a local function.
type Embedder interface {
	// Embed converts a batch of texts into vectors, one per text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of the vectors. It may return 0
	// until the first successful Embed call.
	Dimensions() int
}

// EmbedAll embeds texts in batches of at most batchSize and checks that
// the provider returned one non-empty vector per text. A batchSize of 0
// sends everything in one call.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		batch, err := e.Embed(ctx, texts[start:end])
		if err != nil {
			if errors.Is(err, ErrEmbedding) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts", ErrEmbedding, len(batch), end-start)
		}
		for i, v := range batch {
			if len(v) == 0 {
				return nil, fmt.Errorf("%w: provider returned an empty vector for text %d", ErrEmbedding, start+i)
			}
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// EmbedQuery embeds a single text.
func EmbedQuery(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := EmbedAll(ctx, e, []string{text}, 1)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// l2normalize scales v to unit length in place.
func l2normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
