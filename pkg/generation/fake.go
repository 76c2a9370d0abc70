package generation

import "context"

// Fake is a Generator that needs no model. It repeats the question and
// quotes the most relevant text.
type Fake struct{}

// Compile-time check that Fake implements Generator.
var _ Generator = Fake{}

// Predict returns a canned answer built from query and texts.
func (Fake) Predict(ctx context.Context, query string, texts []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	answer := `As a fake LLM, I can repeat your question "` + query + `"`
	if len(texts) > 0 {
		answer += " and quote the first text:\n" + texts[0]
	}
	return answer, nil
}
