package generation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rhuss/askdoc/pkg/debug"
	"github.com/rhuss/askdoc/pkg/observability"
)

// DefaultOpenAIModel is used when no chat model is configured.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	// BaseURL is the API root including the version. Empty selects the
	// OpenAI API.
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// OpenAI answers questions with a chat completion model.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// Compile-time check that OpenAI implements Generator.
var _ Generator = (*OpenAI)(nil)

// NewOpenAI creates a generator for an OpenAI-compatible endpoint.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}
}

// Predict sends the rendered prompt as a single user message.
func (g *OpenAI) Predict(ctx context.Context, query string, texts []string) (string, error) {
	prompt := BuildPrompt(query, texts)
	debug.Trace("generation", "prompt", "model", g.model, "prompt", prompt)

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: g.maxTokens,
	})
	observability.ObserveProvider("openai", "chat", start, err)
	if err != nil {
		return "", fmt.Errorf("%w: chat completion failed: %w", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: chat completion returned no choices", ErrGeneration)
	}

	observability.ProviderTokensTotal.WithLabelValues("openai", "chat", "input").Add(float64(resp.Usage.PromptTokens))
	observability.ProviderTokensTotal.WithLabelValues("openai", "chat", "output").Add(float64(resp.Usage.CompletionTokens))

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	debug.Log("generation", "generated answer",
		"model", g.model,
		"texts", len(texts),
		"finish_reason", resp.Choices[0].FinishReason,
		"elapsed", time.Since(start),
	)
	return answer, nil
}
