// Package generation produces answers from a question and the retrieved
// context texts.
package generation

import (
	"context"
	"errors"
	"strings"
)

// ErrGeneration is wrapped by every failure reported by a Generator.
var ErrGeneration = errors.New("generation error")

// Generator answers a question given context texts ordered by relevance.
type Generator interface {
	Predict(ctx context.Context, query string, texts []string) (string, error)
}

// contextSeparator joins context texts inside the prompt.
const contextSeparator = "\n---\n"

const promptTemplate = "Use the following pieces of context to answer the question at the end. \n" +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer. \n" +
	"Use three sentences maximum. Keep the answer as concise as possible.\n" +
	"\n" +
	"Context:\n" +
	"---\n" +
	"{context}\n" +
	"---\n" +
	"\n" +
	"Question: \n" +
	"{query}\n" +
	"\n" +
	"Helpful Answer:\n"

// BuildPrompt renders the question-answering prompt.
func BuildPrompt(query string, texts []string) string {
	r := strings.NewReplacer(
		"{context}", strings.Join(texts, contextSeparator),
		"{query}", query,
	)
	return r.Replace(promptTemplate)
}
