package mockbackend

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/askdoc/pkg/embedding"
	"github.com/rhuss/askdoc/pkg/generation"
)

func TestAnswer(t *testing.T) {
	prompt := generation.BuildPrompt("How long is the warranty?", []string{
		"Warranty: two years.\nReturns: 30 days.",
		"Unrelated text.",
	})

	got := Answer(prompt)
	want := `Answer to "How long is the warranty?": Warranty: two years.`
	if got != want {
		t.Errorf("Answer = %q, want %q", got, want)
	}

	if got := Answer("hello"); got != "I don't know." {
		t.Errorf("Answer(non-prompt) = %q", got)
	}
}

func TestOpenAIAdaptersAgainstBackend(t *testing.T) {
	backend := New(32)
	server := httptest.NewServer(backend.Handler())
	defer server.Close()

	ctx := context.Background()

	embedder := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{BaseURL: server.URL + "/v1", APIKey: "sk-mock"})
	vecs, err := embedder.Embed(ctx, []string{"first text", "second text"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 32 {
		t.Fatalf("vectors = %d x %d, want 2 x 32", len(vecs), len(vecs[0]))
	}

	local, _ := embedding.NewHashEmbedder(32).Embed(ctx, []string{"first text"})
	for i := range local[0] {
		if local[0][i] != vecs[0][i] {
			t.Fatal("backend vectors differ from the hashing embedder")
		}
	}

	gen := generation.NewOpenAI(generation.OpenAIConfig{BaseURL: server.URL + "/v1", APIKey: "sk-mock", Model: "mock-model"})
	answer, err := gen.Predict(ctx, "What is first?", []string{"first text"})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !strings.Contains(answer, `"What is first?"`) || !strings.HasSuffix(answer, "first text") {
		t.Errorf("answer = %q", answer)
	}

	if backend.EmbeddingCalls() != 1 || backend.ChatCalls() != 1 {
		t.Errorf("calls = %d embedding, %d chat; want 1, 1", backend.EmbeddingCalls(), backend.ChatCalls())
	}
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		raw     string
		want    []string
		wantErr bool
	}{
		{`"single"`, []string{"single"}, false},
		{`["a","b"]`, []string{"a", "b"}, false},
		{`42`, nil, true},
	}
	for _, tt := range tests {
		got, err := parseInput([]byte(tt.raw))
		if (err != nil) != tt.wantErr {
			t.Errorf("parseInput(%s) error = %v", tt.raw, err)
			continue
		}
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("parseInput(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
