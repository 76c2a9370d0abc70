package embedding

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rhuss/askdoc/pkg/debug"
	"github.com/rhuss/askdoc/pkg/observability"
)

// DefaultOpenAIModel is used when no embedding model is configured.
const DefaultOpenAIModel = string(openai.SmallEmbedding3)

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	// BaseURL is the API root including the version, e.g. "http://vllm:8000/v1".
	// Empty selects the OpenAI API.
	BaseURL string
	APIKey  string
	Model   string

	// Dimensions requests shortened vectors from models that support it.
	// 0 keeps the model default.
	Dimensions int

	Timeout time.Duration
}

// OpenAIEmbedder calls any OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int

	mu   sync.RWMutex
	dims int
}

// Compile-time check that OpenAIEmbedder implements Embedder.
var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible endpoint.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: cfg.Dimensions,
		dims:       cfg.Dimensions,
	}
}

// Embed sends texts to the embeddings endpoint and returns the vectors in
// input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	observability.ObserveProvider("openai", "embed", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding request failed: %w", ErrEmbedding, err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: embedding response contained no data", ErrEmbedding)
	}
	observability.ProviderTokensTotal.WithLabelValues("openai", "embed", "input").Add(float64(resp.Usage.PromptTokens))

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: embedding response index %d out of range [0, %d)", ErrEmbedding, d.Index, len(texts))
		}
		vectors[d.Index] = d.Embedding
	}

	if len(vectors[0]) > 0 {
		e.mu.Lock()
		if e.dims == 0 {
			e.dims = len(vectors[0])
		}
		e.mu.Unlock()
	}

	debug.Log("embedding", "embedded texts", "model", e.model, "count", len(texts), "elapsed", time.Since(start))
	return vectors, nil
}

// Dimensions returns the dimensionality of the embedding vectors.
// Returns 0 until the first successful Embed call unless configured.
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}
