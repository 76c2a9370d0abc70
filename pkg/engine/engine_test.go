package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/rhuss/askdoc/pkg/api"
	"github.com/rhuss/askdoc/pkg/docstore"
	"github.com/rhuss/askdoc/pkg/embedding"
	"github.com/rhuss/askdoc/pkg/extract"
	"github.com/rhuss/askdoc/pkg/generation"
	"github.com/rhuss/askdoc/pkg/index"
	"github.com/rhuss/askdoc/pkg/index/memory"
	"github.com/rhuss/askdoc/pkg/retrieval"
)

// mockDocuments implements Documents for testing.
type mockDocuments struct {
	texts     []string
	storeErr  error
	retErr    error
	clearErr  error
	pingErr   error
	uploaded  string
	body      string
	lastQuery api.Query
	cleared   int
}

func (m *mockDocuments) Store(_ context.Context, up docstore.Upload) (*api.Document, error) {
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	data, _ := io.ReadAll(up.Body)
	m.uploaded = up.Name
	m.body = string(data)
	return &api.Document{Object: "document", Name: up.Name, Pages: 1, Chunks: 1, Generation: 1}, nil
}

func (m *mockDocuments) Clear(context.Context) error {
	m.cleared++
	return m.clearErr
}

func (m *mockDocuments) Retrieve(_ context.Context, q api.Query) ([]string, error) {
	m.lastQuery = q
	return m.texts, m.retErr
}

func (m *mockDocuments) Status() api.DocumentStatus {
	if m.uploaded == "" {
		return api.DocumentStatus{Object: "document.status", State: api.DocumentStateEmpty}
	}
	return api.DocumentStatus{Object: "document.status", State: api.DocumentStateLoaded, Count: 1,
		Document: &api.Document{Name: m.uploaded}}
}

func (m *mockDocuments) Ping(context.Context) error { return m.pingErr }

// failingGenerator always fails.
type failingGenerator struct{}

func (failingGenerator) Predict(context.Context, string, []string) (string, error) {
	return "", fmt.Errorf("%w: model overloaded", generation.ErrGeneration)
}

func newTestEngine(t *testing.T, docs Documents, g generation.Generator) *Engine {
	t.Helper()
	e, err := New(docs, g, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(nil, generation.Fake{}, Config{}); err == nil {
		t.Error("expected error for nil document store")
	}
	if _, err := New(&mockDocuments{}, nil, Config{}); err == nil {
		t.Error("expected error for nil generator")
	}
}

func TestAsk(t *testing.T) {
	docs := &mockDocuments{texts: []string{"X is a letter.", "Y follows X."}}
	e := newTestEngine(t, docs, generation.Fake{})

	answer, err := e.Ask(context.Background(), &api.Query{Text: "What is X?", Strategy: "mmr"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Object != "answer" {
		t.Errorf("Object = %q, want answer", answer.Object)
	}
	if answer.Strategy != api.StrategyMMR {
		t.Errorf("Strategy = %q, want MMR", answer.Strategy)
	}
	if docs.lastQuery.Strategy != api.StrategyMMR {
		t.Errorf("retrieve strategy = %q, want MMR", docs.lastQuery.Strategy)
	}
	want := "As a fake LLM, I can repeat your question \"What is X?\" and quote the first text:\nX is a letter."
	if answer.Answer != want {
		t.Errorf("Answer = %q, want %q", answer.Answer, want)
	}
	if len(answer.Sources) != 2 {
		t.Errorf("Sources = %q, want 2 texts", answer.Sources)
	}
}

func TestAskDefaultsToSimilar(t *testing.T) {
	docs := &mockDocuments{texts: []string{}}
	e := newTestEngine(t, docs, generation.Fake{})

	answer, err := e.Ask(context.Background(), &api.Query{Text: "What is X?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Strategy != api.StrategySimilar {
		t.Errorf("Strategy = %q, want SIMILAR", answer.Strategy)
	}
	if answer.Answer != `As a fake LLM, I can repeat your question "What is X?"` {
		t.Errorf("Answer = %q", answer.Answer)
	}
}

func TestAskErrors(t *testing.T) {
	tests := []struct {
		name      string
		query     *api.Query
		docs      *mockDocuments
		generator generation.Generator
		wantType  api.ErrorType
		wantParam string
	}{
		{
			name:      "nil query",
			query:     nil,
			docs:      &mockDocuments{},
			wantType:  api.ErrorTypeInvalidRequest,
			wantParam: "text",
		},
		{
			name:      "blank text",
			query:     &api.Query{Text: "   "},
			docs:      &mockDocuments{},
			wantType:  api.ErrorTypeInvalidRequest,
			wantParam: "text",
		},
		{
			name:      "unknown strategy",
			query:     &api.Query{Text: "q", Strategy: "RANDOM"},
			docs:      &mockDocuments{},
			wantType:  api.ErrorTypeInvalidRequest,
			wantParam: "retrieve_strategy",
		},
		{
			name:     "embedding failure",
			query:    &api.Query{Text: "q"},
			docs:     &mockDocuments{retErr: fmt.Errorf("%w: timeout", embedding.ErrEmbedding)},
			wantType: api.ErrorTypeEmbedding,
		},
		{
			name:     "index failure",
			query:    &api.Query{Text: "q"},
			docs:     &mockDocuments{retErr: fmt.Errorf("%w: connection refused", index.ErrIndex)},
			wantType: api.ErrorTypeIndex,
		},
		{
			name:      "generation failure",
			query:     &api.Query{Text: "q"},
			docs:      &mockDocuments{texts: []string{"context"}},
			generator: failingGenerator{},
			wantType:  api.ErrorTypeModelError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.generator
			if g == nil {
				g = generation.Fake{}
			}
			e := newTestEngine(t, tt.docs, g)

			_, err := e.Ask(context.Background(), tt.query)
			var apiErr *api.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Ask error = %v (%T), want *api.APIError", err, err)
			}
			if apiErr.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", apiErr.Type, tt.wantType)
			}
			if apiErr.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", apiErr.Param, tt.wantParam)
			}
		})
	}
}

func TestUpload(t *testing.T) {
	docs := &mockDocuments{}
	e := newTestEngine(t, docs, generation.Fake{})

	doc, err := e.Upload(context.Background(), "notes.txt", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.Name != "notes.txt" || docs.body != "hello" {
		t.Errorf("uploaded %q with body %q", doc.Name, docs.body)
	}

	if _, err := e.Upload(context.Background(), "", "text/plain", strings.NewReader("x")); err == nil {
		t.Error("expected error for missing file name")
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want api.ErrorType
	}{
		{fmt.Errorf("%w: image/png", extract.ErrUnsupportedFormat), api.ErrorTypeInvalidRequest},
		{fmt.Errorf("%w: document has no text", docstore.ErrIngestion), api.ErrorTypeIngestion},
		{fmt.Errorf("%w: x", embedding.ErrEmbedding), api.ErrorTypeEmbedding},
		{fmt.Errorf("%w: x", index.ErrIndex), api.ErrorTypeIndex},
		{fmt.Errorf("%w: x", generation.ErrGeneration), api.ErrorTypeModelError},
		{fmt.Errorf("%w: x", retrieval.ErrUnknownStrategy), api.ErrorTypeInvalidRequest},
		{context.DeadlineExceeded, api.ErrorTypeServerError},
		{fmt.Errorf("%w: %w", embedding.ErrEmbedding, context.Canceled), api.ErrorTypeServerError},
		{fmt.Errorf("%w: %w", index.ErrIndex, context.DeadlineExceeded), api.ErrorTypeServerError},
		{errors.New("disk on fire"), api.ErrorTypeServerError},
		{api.NewNotFoundError("gone"), api.ErrorTypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			apiErr, ok := toAPIError(tt.err).(*api.APIError)
			if !ok {
				t.Fatalf("toAPIError(%v) is not an *api.APIError", tt.err)
			}
			if apiErr.Type != tt.want {
				t.Errorf("Type = %q, want %q", apiErr.Type, tt.want)
			}
		})
	}
	if toAPIError(nil) != nil {
		t.Error("toAPIError(nil) should be nil")
	}
}

func TestClearStatusReady(t *testing.T) {
	docs := &mockDocuments{}
	e := newTestEngine(t, docs, generation.Fake{})
	ctx := context.Background()

	status, err := e.Status(ctx)
	if err != nil || status.State != api.DocumentStateEmpty {
		t.Errorf("Status = %+v, %v, want empty", status, err)
	}
	if err := e.Clear(ctx); err != nil {
		t.Errorf("Clear: %v", err)
	}
	if docs.cleared != 1 {
		t.Errorf("cleared = %d, want 1", docs.cleared)
	}
	if err := e.Ready(ctx); err != nil {
		t.Errorf("Ready: %v", err)
	}

	docs.pingErr = fmt.Errorf("%w: connection refused", index.ErrIndex)
	var apiErr *api.APIError
	if err := e.Ready(ctx); !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeIndex {
		t.Errorf("Ready error = %v, want index_error", err)
	}
}

// TestEndToEnd runs the engine over a real document store with the
// hashing embedder and the fake generator.
func TestEndToEnd(t *testing.T) {
	store, err := docstore.New(memory.New(0), embedding.NewHashEmbedder(128), docstore.Config{
		StagingDir:   t.TempDir(),
		ChunkSize:    60,
		ChunkOverlap: 10,
		Retrieval:    retrieval.DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	defer store.Close()

	e := newTestEngine(t, store, generation.Fake{})
	ctx := context.Background()

	body := "Penguins live in the southern hemisphere.\n\nThe capital of France is Paris.\n\nRust is a systems language."
	if _, err := e.Upload(ctx, "facts.md", "", strings.NewReader(body)); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	answer, err := e.Ask(ctx, &api.Query{Text: "capital of France", Strategy: api.StrategySimilar})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(answer.Sources) == 0 || !strings.Contains(answer.Sources[0], "Paris") {
		t.Errorf("Sources = %q, want the Paris chunk first", answer.Sources)
	}
	if !strings.Contains(answer.Answer, "Paris") {
		t.Errorf("Answer = %q, want it to quote the Paris chunk", answer.Answer)
	}

	if err := e.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	answer, err = e.Ask(ctx, &api.Query{Text: "capital of France"})
	if err != nil {
		t.Fatalf("Ask after clear: %v", err)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("Sources after clear = %q, want none", answer.Sources)
	}
}

func TestUploadCanceled(t *testing.T) {
	store, err := docstore.New(memory.New(0), embedding.NewHashEmbedder(64), docstore.Config{
		StagingDir:   t.TempDir(),
		ChunkSize:    60,
		ChunkOverlap: 10,
		Retrieval:    retrieval.DefaultConfig(),
	})
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	defer store.Close()
	e := newTestEngine(t, store, generation.Fake{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Upload(ctx, "facts.md", "", strings.NewReader("Penguins live in the south."))

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Upload error = %v, want *api.APIError", err)
	}
	if apiErr.Type != api.ErrorTypeServerError || apiErr.Message != "request canceled" {
		t.Errorf("Upload error = %v, want server_error request canceled", apiErr)
	}
}
