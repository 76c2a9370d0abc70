// Package memory provides an in-memory implementation of index.Index for
// tests and single-process deployments. Chunks are lost when the process
// restarts.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rhuss/askdoc/pkg/api"
	"github.com/rhuss/askdoc/pkg/index"
)

// Index is an in-memory vector index. Inserts build a new slice and publish
// it under the write lock, so readers never observe a partial batch.
type Index struct {
	mu      sync.RWMutex
	chunks  []api.Chunk // insertion order
	ids     map[string]struct{}
	dims    int
	maxSize int // 0 = unlimited
	closed  bool
}

// Ensure Index implements index.Index at compile time.
var _ index.Index = (*Index)(nil)

// New creates an empty in-memory index. If maxSize is greater than 0,
// inserts that would grow the collection beyond maxSize chunks fail.
func New(maxSize int) *Index {
	return &Index{
		ids:     make(map[string]struct{}),
		maxSize: maxSize,
	}
}

// Insert validates the batch and appends it in one step.
func (x *Index) Insert(_ context.Context, chunks []api.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("%w: index is closed", index.ErrIndex)
	}

	prepared, dims, err := index.Prepare(chunks, x.dims)
	if err != nil {
		return err
	}
	for _, c := range prepared {
		if _, exists := x.ids[c.ID]; exists {
			return fmt.Errorf("%w: chunk id %q already indexed", index.ErrIndex, c.ID)
		}
	}
	if x.maxSize > 0 && len(x.chunks)+len(prepared) > x.maxSize {
		return fmt.Errorf("%w: inserting %d chunks exceeds capacity of %d", index.ErrIndex, len(prepared), x.maxSize)
	}

	next := make([]api.Chunk, 0, len(x.chunks)+len(prepared))
	next = append(next, x.chunks...)
	for _, c := range prepared {
		c.Embedding = append([]float32(nil), c.Embedding...)
		next = append(next, c)
		x.ids[c.ID] = struct{}{}
	}
	x.chunks = next
	x.dims = dims

	return nil
}

// SearchNearest ranks every chunk by cosine similarity. Equal scores keep
// insertion order.
func (x *Index) SearchNearest(_ context.Context, vector []float32, k int) ([]index.Match, error) {
	if err := index.ValidateSearch(vector, k); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	matches, err := x.rank(vector, k)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		matches[i].Chunk.Embedding = nil
	}
	return matches, nil
}

// SearchMMR selects k of the fetchK nearest chunks by maximal marginal relevance.
func (x *Index) SearchMMR(_ context.Context, vector []float32, k, fetchK int, lambda float64) ([]index.Match, error) {
	if err := index.ValidateSearch(vector, k); err != nil {
		return nil, err
	}
	if fetchK < k {
		fetchK = k
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	candidates, err := x.rank(vector, fetchK)
	if err != nil {
		return nil, err
	}
	selected := index.SelectMMR(vector, candidates, k, lambda)
	for i := range selected {
		selected[i].Chunk.Embedding = nil
	}
	return selected, nil
}

// rank returns the top n chunks with embeddings. Callers hold the read lock.
func (x *Index) rank(vector []float32, n int) ([]index.Match, error) {
	if x.closed {
		return nil, fmt.Errorf("%w: index is closed", index.ErrIndex)
	}
	if len(x.chunks) == 0 {
		return []index.Match{}, nil
	}
	if len(vector) != x.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", index.ErrIndex, len(vector), x.dims)
	}

	matches := make([]index.Match, len(x.chunks))
	for i, c := range x.chunks {
		matches[i] = index.Match{Chunk: c, Score: index.CosineSimilarity(vector, c.Embedding)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if n < len(matches) {
		matches = matches[:n]
	}
	return matches, nil
}

// Clear drops every chunk and forgets the collection dimensionality.
func (x *Index) Clear(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("%w: index is closed", index.ErrIndex)
	}
	x.chunks = nil
	x.ids = make(map[string]struct{})
	x.dims = 0
	return nil
}

// Count returns the number of indexed chunks.
func (x *Index) Count(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return 0, fmt.Errorf("%w: index is closed", index.ErrIndex)
	}
	return len(x.chunks), nil
}

// Close releases the stored chunks. Further calls fail with index.ErrIndex.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.chunks = nil
	x.ids = nil
	x.closed = true
	return nil
}
