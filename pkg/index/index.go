// Package index defines the vector index that holds the chunks of the
// active document, together with the selection code shared by its backends.
//
// Backends live in sub-packages:
//   - memory: in-process slice guarded by a RWMutex
//   - postgres: pgx pool with the pgvector extension
//   - qdrant: Qdrant HTTP API
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/rhuss/askdoc/pkg/api"
)

// ErrIndex is wrapped by every failure reported by an index backend.
var ErrIndex = errors.New("index error")

// Index is a named collection of chunks with similarity search.
type Index interface {
	// Insert adds chunks atomically: either every chunk is queryable
	// afterwards or none is. Chunks without an ID are assigned
	// api.ChunkID(generation, position).
	Insert(ctx context.Context, chunks []api.Chunk) error

	// SearchNearest returns up to k chunks ordered by descending cosine
	// similarity to vector. An empty collection yields an empty result.
	SearchNearest(ctx context.Context, vector []float32, k int) ([]Match, error)

	// SearchMMR fetches fetchK nearest candidates and greedily selects k
	// of them by maximal marginal relevance.
	SearchMMR(ctx context.Context, vector []float32, k, fetchK int, lambda float64) ([]Match, error)

	// Clear removes all chunks. Clearing an empty collection is a no-op.
	Clear(ctx context.Context) error

	// Count returns the number of chunks in the collection.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// Match is a chunk returned by a search with its similarity to the query.
type Match struct {
	Chunk api.Chunk
	Score float32
}

// Texts returns the chunk texts of matches in order.
func Texts(matches []Match) []string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Chunk.Text
	}
	return texts
}

// Prepare validates a batch before insertion and returns a copy with IDs
// assigned. dims is the dimensionality already present in the collection,
// or 0 when the collection is empty. It returns the batch dimensionality.
func Prepare(chunks []api.Chunk, dims int) ([]api.Chunk, int, error) {
	out := make([]api.Chunk, len(chunks))
	seen := make(map[string]struct{}, len(chunks))

	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			return nil, 0, fmt.Errorf("%w: chunk %d has no embedding", ErrIndex, i)
		}
		if dims == 0 {
			dims = len(c.Embedding)
		}
		if len(c.Embedding) != dims {
			return nil, 0, fmt.Errorf("%w: chunk %d has %d dimensions, want %d", ErrIndex, i, len(c.Embedding), dims)
		}
		if c.ID == "" {
			c.ID = api.ChunkID(c.Metadata.Generation, i)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, 0, fmt.Errorf("%w: duplicate chunk id %q", ErrIndex, c.ID)
		}
		seen[c.ID] = struct{}{}
		out[i] = c
	}

	return out, dims, nil
}

// ValidateSearch checks the arguments of a search call.
func ValidateSearch(vector []float32, k int) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty query vector", ErrIndex)
	}
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", ErrIndex, k)
	}
	return nil
}
