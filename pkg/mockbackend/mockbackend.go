// Package mockbackend is a deterministic OpenAI-compatible backend serving
// embeddings and chat completions. It backs the integration tests and the
// mock-backend command, so askdoc can be exercised end to end without a
// model server.
//
// Embeddings are produced by the hashing embedder, so texts that share
// words are close. Chat completions quote the question and the first
// context piece of the askdoc prompt.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/rhuss/askdoc/pkg/embedding"
)

// DefaultDimensions is the size of the returned embedding vectors.
const DefaultDimensions = 64

// Backend serves the mock API and counts the calls it receives.
type Backend struct {
	embedder *embedding.HashEmbedder

	embeddingCalls atomic.Int64
	chatCalls      atomic.Int64
}

// New creates a Backend returning vectors with dims entries.
func New(dims int) *Backend {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Backend{embedder: embedding.NewHashEmbedder(dims)}
}

// Handler returns the HTTP handler. Routes live under /v1.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/embeddings", b.handleEmbeddings)
	mux.HandleFunc("POST /v1/chat/completions", b.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// EmbeddingCalls returns the number of embedding requests served.
func (b *Backend) EmbeddingCalls() int64 { return b.embeddingCalls.Load() }

// ChatCalls returns the number of chat completion requests served.
func (b *Backend) ChatCalls() int64 { return b.chatCalls.Load() }

// --- Request types ---

type embeddingRequest struct {
	Input json.RawMessage `json:"input"`
	Model string          `json:"model"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- Response types ---

type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  usage           `json:"usage"`
}

type embeddingData struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   usage        `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Handlers ---

func (b *Backend) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	b.embeddingCalls.Add(1)

	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	inputs, err := parseInput(req.Input)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	vectors, err := b.embedder.Embed(r.Context(), inputs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := embeddingResponse{Object: "list", Model: modelOrDefault(req.Model)}
	tokens := 0
	for i, v := range vectors {
		resp.Data = append(resp.Data, embeddingData{Object: "embedding", Index: i, Embedding: v})
		tokens += len(strings.Fields(inputs[i]))
	}
	resp.Usage = usage{PromptTokens: tokens, TotalTokens: tokens}
	writeJSON(w, resp)
}

func (b *Backend) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	b.chatCalls.Add(1)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	var prompt string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			prompt = req.Messages[i].Content
			break
		}
	}

	answer := Answer(prompt)
	writeJSON(w, chatResponse{
		ID:     "chatcmpl-mock",
		Object: "chat.completion",
		Model:  modelOrDefault(req.Model),
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: answer},
			FinishReason: "stop",
		}},
		Usage: usage{
			PromptTokens:     len(strings.Fields(prompt)),
			CompletionTokens: len(strings.Fields(answer)),
			TotalTokens:      len(strings.Fields(prompt)) + len(strings.Fields(answer)),
		},
	})
}

func handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "askdoc"},
			{"id": "mock-embedding", "object": "model", "owned_by": "askdoc"},
		},
	})
}

// Answer is the reply the backend gives to an askdoc prompt: the question
// and the first line of the most relevant context piece. Prompts of other
// shapes are answered with a fixed text.
func Answer(prompt string) string {
	question, ok := between(prompt, "Question: \n", "\n\nHelpful Answer:")
	if !ok {
		return "I don't know."
	}
	texts, _ := between(prompt, "Context:\n---\n", "\n---\n")
	first, _, _ := strings.Cut(strings.TrimSpace(texts), "\n")
	return fmt.Sprintf("Answer to %q: %s", strings.TrimSpace(question), first)
}

func between(s, start, end string) (string, bool) {
	_, rest, ok := strings.Cut(s, start)
	if !ok {
		return "", false
	}
	inner, _, ok := strings.Cut(rest, end)
	return inner, ok
}

// parseInput accepts a single string or an array of strings.
func parseInput(raw json.RawMessage) ([]string, error) {
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("input must be a string or an array of strings")
	}
	return []string{one}, nil
}

func modelOrDefault(model string) string {
	if model == "" {
		return "mock-model"
	}
	return model
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"message": message, "type": "invalid_request_error"},
	})
}
