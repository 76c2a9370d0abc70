// Package retrieval ranks the chunks of the active document against a
// query using one of the supported strategies.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/rhuss/askdoc/pkg/api"
	"github.com/rhuss/askdoc/pkg/debug"
	"github.com/rhuss/askdoc/pkg/embedding"
	"github.com/rhuss/askdoc/pkg/index"
	"github.com/rhuss/askdoc/pkg/observability"
)

// Default retrieval parameters.
const (
	DefaultK      = 3
	DefaultFetchK = 10
)

// ErrUnknownStrategy is returned when a query names a strategy the engine
// does not implement.
var ErrUnknownStrategy = errors.New("unknown retrieve strategy")

// Config holds the ranking parameters.
type Config struct {
	K      int     // number of texts returned
	FetchK int     // MMR candidate pool size
	Lambda float64 // MMR relevance weight in [0,1]
}

// DefaultConfig returns the default ranking parameters.
func DefaultConfig() Config {
	return Config{K: DefaultK, FetchK: DefaultFetchK, Lambda: index.DefaultLambda}
}

// Validate checks the parameters.
func (c Config) Validate() error {
	var errs []error
	if c.K <= 0 {
		errs = append(errs, fmt.Errorf("k must be positive, got %d", c.K))
	}
	if c.FetchK < c.K {
		errs = append(errs, fmt.Errorf("fetch_k (%d) must be at least k (%d)", c.FetchK, c.K))
	}
	if c.Lambda < 0 || c.Lambda > 1 {
		errs = append(errs, fmt.Errorf("lambda must be in [0,1], got %g", c.Lambda))
	}
	return errors.Join(errs...)
}

// Engine embeds queries and searches the index.
type Engine struct {
	index    index.Index
	embedder embedding.Embedder
	cfg      Config
}

// NewEngine creates a retrieval engine. The embedder must be the one used
// to embed the indexed chunks.
func NewEngine(idx index.Index, embedder embedding.Embedder, cfg Config) (*Engine, error) {
	if idx == nil {
		return nil, errors.New("retrieval: index is required")
	}
	if embedder == nil {
		return nil, errors.New("retrieval: embedder is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}
	return &Engine{index: idx, embedder: embedder, cfg: cfg}, nil
}

// Config returns the engine's ranking parameters.
func (e *Engine) Config() Config {
	return e.cfg
}

// Retrieve returns up to K chunk texts for q, most relevant first. An
// empty index yields an empty, non-nil slice.
func (e *Engine) Retrieve(ctx context.Context, q api.Query) (texts []string, err error) {
	strategy := q.Strategy
	if strategy == "" {
		strategy = api.StrategySimilar
	}
	defer func() {
		observability.RetrievalsTotal.WithLabelValues(string(strategy), observability.Status(err)).Inc()
	}()

	switch strategy {
	case api.StrategySimilar, api.StrategyMMR:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	count, err := e.index.Count(ctx)
	if err != nil {
		return nil, wrapIndex(err)
	}
	if count == 0 {
		debug.Log("retrieval", "index is empty", "strategy", strategy)
		return []string{}, nil
	}

	vector, err := embedding.EmbedQuery(ctx, e.embedder, q.Text)
	if err != nil {
		return nil, err
	}

	var matches []index.Match
	switch strategy {
	case api.StrategySimilar:
		matches, err = e.index.SearchNearest(ctx, vector, e.cfg.K)
	case api.StrategyMMR:
		matches, err = e.index.SearchMMR(ctx, vector, e.cfg.K, e.cfg.FetchK, e.cfg.Lambda)
	}
	if err != nil {
		return nil, wrapIndex(err)
	}

	if debug.Enabled("retrieval") {
		scores := make([]float32, len(matches))
		for i, m := range matches {
			scores[i] = m.Score
		}
		debug.Log("retrieval", "retrieved chunks",
			"strategy", strategy,
			"query", debug.Truncate(q.Text, 80),
			"matches", len(matches),
			"scores", scores,
		)
	}

	return index.Texts(matches), nil
}

func wrapIndex(err error) error {
	if errors.Is(err, index.ErrIndex) {
		return err
	}
	return fmt.Errorf("%w: %w", index.ErrIndex, err)
}
