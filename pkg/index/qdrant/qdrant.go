// Package qdrant provides an index.Index backed by a Qdrant collection,
// accessed through the Qdrant HTTP API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rhuss/askdoc/pkg/api"
	"github.com/rhuss/askdoc/pkg/index"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "LLM_VECTOR_DB"

// pointNamespace derives stable point UUIDs from chunk IDs, since Qdrant
// only accepts integers and UUIDs as point IDs.
var pointNamespace = uuid.MustParse("3f1c7a52-8d4e-4b8a-9c61-2f0e5d7b9a10")

// Index implements index.Index using the Qdrant HTTP API. The collection
// is created on first insert and dropped by Clear.
type Index struct {
	BaseURL    string
	Collection string
	HTTPClient *http.Client

	mu sync.Mutex // serializes Insert and Clear
}

// Compile-time check that Index implements index.Index.
var _ index.Index = (*Index)(nil)

// New creates an Index that communicates with Qdrant via HTTP.
func New(url, collection string) *Index {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Index{
		BaseURL:    strings.TrimRight(url, "/"),
		Collection: collection,
		HTTPClient: &http.Client{},
	}
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type payload struct {
	ChunkID    string `json:"chunk_id"`
	Content    string `json:"content"`
	Generation uint64 `json:"generation"`
	SourcePage int    `json:"source_page"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Source     string `json:"source,omitempty"`
}

type point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload payload   `json:"payload"`
}

// searchRequest is the JSON body for Qdrant's search endpoint.
type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	WithVector  bool      `json:"with_vector"`
}

type searchResult struct {
	ID      any       `json:"id"`
	Score   float32   `json:"score"`
	Payload payload   `json:"payload"`
	Vector  []float32 `json:"vector,omitempty"`
}

type collectionInfo struct {
	Config struct {
		Params struct {
			Vectors vectorParams `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

// statusError is returned for non-2xx responses.
type statusError struct {
	op     string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s returned status %d: %s", e.op, e.status, e.body)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

// do sends a JSON request and decodes the "result" field of the response
// into out when out is not nil.
func (q *Index) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := q.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{op: op, status: resp.StatusCode, body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("parsing %s response: %w", op, err)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("parsing %s result: %w", op, err)
	}
	return nil
}

func (q *Index) collectionPath() string {
	return "/collections/" + q.Collection
}

// collectionDims returns the vector size of the collection, or 0 if the
// collection does not exist.
func (q *Index) collectionDims(ctx context.Context) (int, error) {
	var info collectionInfo
	err := q.do(ctx, "get collection", http.MethodGet, q.collectionPath(), nil, &info)
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Config.Params.Vectors.Size, nil
}

// createCollection creates the collection with cosine distance.
// PUT /collections/{name} with {"vectors": {"size": dims, "distance": "Cosine"}}
func (q *Index) createCollection(ctx context.Context, dims int) error {
	body := map[string]any{
		"vectors": vectorParams{Size: dims, Distance: "Cosine"},
	}
	return q.do(ctx, "create collection", http.MethodPut, q.collectionPath(), body, nil)
}

// Insert creates the collection if needed, rejects IDs that are already
// present and upserts the whole batch in one request with wait=true.
func (q *Index) Insert(ctx context.Context, chunks []api.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	dims, err := q.collectionDims(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", index.ErrIndex, err)
	}

	prepared, batchDims, err := index.Prepare(chunks, dims)
	if err != nil {
		return err
	}

	points := make([]point, len(prepared))
	ids := make([]string, len(prepared))
	for i, c := range prepared {
		ids[i] = pointID(c.ID)
		points[i] = point{
			ID:     ids[i],
			Vector: c.Embedding,
			Payload: payload{
				ChunkID:    c.ID,
				Content:    c.Text,
				Generation: c.Metadata.Generation,
				SourcePage: c.Metadata.SourcePage,
				Start:      c.Metadata.Start,
				End:        c.Metadata.End,
				Source:     c.Metadata.Source,
			},
		}
	}

	if dims == 0 {
		if err := q.createCollection(ctx, batchDims); err != nil {
			return fmt.Errorf("%w: %w", index.ErrIndex, err)
		}
	} else {
		var existing []searchResult
		body := map[string]any{"ids": ids, "with_payload": true}
		if err := q.do(ctx, "retrieve points", http.MethodPost, q.collectionPath()+"/points", body, &existing); err != nil {
			return fmt.Errorf("%w: %w", index.ErrIndex, err)
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w: chunk id %q already indexed", index.ErrIndex, existing[0].Payload.ChunkID)
		}
	}

	body := map[string]any{"points": points}
	if err := q.do(ctx, "upsert points", http.MethodPut, q.collectionPath()+"/points?wait=true", body, nil); err != nil {
		return fmt.Errorf("%w: %w", index.ErrIndex, err)
	}
	return nil
}

// SearchNearest performs a nearest-neighbor search in the collection.
// POST /collections/{name}/points/search
func (q *Index) SearchNearest(ctx context.Context, vector []float32, k int) ([]index.Match, error) {
	if err := index.ValidateSearch(vector, k); err != nil {
		return nil, err
	}
	return q.search(ctx, vector, k, false)
}

// SearchMMR fetches fetchK candidates with vectors and selects k of them by
// maximal marginal relevance.
func (q *Index) SearchMMR(ctx context.Context, vector []float32, k, fetchK int, lambda float64) ([]index.Match, error) {
	if err := index.ValidateSearch(vector, k); err != nil {
		return nil, err
	}
	if fetchK < k {
		fetchK = k
	}

	candidates, err := q.search(ctx, vector, fetchK, true)
	if err != nil {
		return nil, err
	}
	selected := index.SelectMMR(vector, candidates, k, lambda)
	for i := range selected {
		selected[i].Chunk.Embedding = nil
	}
	return selected, nil
}

func (q *Index) search(ctx context.Context, vector []float32, limit int, withVector bool) ([]index.Match, error) {
	req := searchRequest{
		Vector:      vector,
		Limit:       limit,
		WithPayload: true,
		WithVector:  withVector,
	}

	var results []searchResult
	err := q.do(ctx, "search", http.MethodPost, q.collectionPath()+"/points/search", req, &results)
	if isNotFound(err) {
		return []index.Match{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", index.ErrIndex, err)
	}

	matches := make([]index.Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, index.Match{
			Chunk: api.Chunk{
				ID:   r.Payload.ChunkID,
				Text: r.Payload.Content,
				Metadata: api.ChunkMetadata{
					SourcePage: r.Payload.SourcePage,
					Start:      r.Payload.Start,
					End:        r.Payload.End,
					Generation: r.Payload.Generation,
					Source:     r.Payload.Source,
				},
				Embedding: r.Vector,
			},
			Score: r.Score,
		})
	}

	// Qdrant leaves the order of equal scores unspecified.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Chunk.ID < matches[j].Chunk.ID
	})
	return matches, nil
}

// Clear deletes the collection. It is recreated by the next Insert, so a
// new document may use a different embedding size.
// DELETE /collections/{name}
func (q *Index) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	err := q.do(ctx, "delete collection", http.MethodDelete, q.collectionPath(), nil, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("%w: %w", index.ErrIndex, err)
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (q *Index) Count(ctx context.Context) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	err := q.do(ctx, "count", http.MethodPost, q.collectionPath()+"/points/count", map[string]any{"exact": true}, &result)
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", index.ErrIndex, err)
	}
	return result.Count, nil
}

// Close releases idle HTTP connections.
func (q *Index) Close() error {
	q.HTTPClient.CloseIdleConnections()
	return nil
}

func pointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}
