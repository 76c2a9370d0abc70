package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Chunk is a bounded slice of document text stored in the vector index.
// Chunks are immutable once inserted.
type Chunk struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Metadata  ChunkMetadata `json:"metadata"`
	Embedding []float32     `json:"-"`
}

// ChunkMetadata carries the positional information of a chunk.
type ChunkMetadata struct {
	SourcePage int    `json:"source_page"` // 1-based page of the chunk's first rune
	Start      int    `json:"start"`       // rune offset into the document text
	End        int    `json:"end"`         // exclusive rune offset
	Generation uint64 `json:"generation"`
	Source     string `json:"source,omitempty"` // uploaded file name
}

// Strategy selects how the retrieval engine ranks chunks.
type Strategy string

const (
	// StrategySimilar returns the nearest chunks by cosine similarity.
	StrategySimilar Strategy = "SIMILAR"
	// StrategyMMR trades relevance for diversity using maximal marginal relevance.
	StrategyMMR Strategy = "MMR"
)

// ParseStrategy converts a strategy name to a Strategy. Matching is case
// insensitive and an empty string selects StrategySimilar.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(StrategySimilar):
		return StrategySimilar, nil
	case string(StrategyMMR):
		return StrategyMMR, nil
	default:
		return "", fmt.Errorf("unknown retrieve strategy %q", s)
	}
}

// UnmarshalJSON accepts any casing of the known strategy names.
func (s *Strategy) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("retrieve_strategy must be a string: %w", err)
	}
	parsed, err := ParseStrategy(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Query is a single question against the active document.
type Query struct {
	Text     string   `json:"text"`
	Strategy Strategy `json:"retrieve_strategy,omitempty"`
}

// DocumentState is the lifecycle state of the document store.
type DocumentState string

const (
	DocumentStateEmpty  DocumentState = "empty"
	DocumentStateLoaded DocumentState = "loaded"
)

// Document summarizes the document currently represented in the index.
type Document struct {
	Object     string    `json:"object"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Pages      int       `json:"pages"`
	Chunks     int       `json:"chunks"`
	Generation uint64    `json:"generation"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// DocumentStatus reports the store state and, when loaded, the document.
type DocumentStatus struct {
	Object   string        `json:"object"`
	State    DocumentState `json:"state"`
	Count    int           `json:"count"`
	Document *Document     `json:"document,omitempty"`
}

// Answer is the result of asking a question about the active document.
type Answer struct {
	Object   string   `json:"object"`
	Query    string   `json:"query"`
	Strategy Strategy `json:"strategy"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
}
