package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Server.MaxUploadSize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_size must be > 0, got %d", c.Server.MaxUploadSize))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	if c.Chunker.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunker.size must be > 0, got %d", c.Chunker.Size))
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		errs = append(errs, fmt.Errorf("chunker.overlap must be in 0..size-1, got %d", c.Chunker.Overlap))
	}

	if c.Retrieval.K <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.k must be > 0, got %d", c.Retrieval.K))
	}
	if c.Retrieval.FetchK < c.Retrieval.K {
		errs = append(errs, fmt.Errorf("retrieval.fetch_k must be >= retrieval.k, got %d", c.Retrieval.FetchK))
	}
	if c.Retrieval.Lambda < 0 || c.Retrieval.Lambda > 1 {
		errs = append(errs, fmt.Errorf("retrieval.lambda must be in [0,1], got %g", c.Retrieval.Lambda))
	}

	switch c.Embedding.Provider {
	case "hash":
	case "openai":
		if c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
			errs = append(errs, fmt.Errorf("embedding.api_key or embedding.base_url is required when embedding.provider is \"openai\""))
		}
	default:
		errs = append(errs, fmt.Errorf("embedding.provider must be \"hash\" or \"openai\", got %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimensions < 0 {
		errs = append(errs, fmt.Errorf("embedding.dimensions must be >= 0, got %d", c.Embedding.Dimensions))
	}

	switch c.Generation.Provider {
	case "fake":
	case "openai":
		if c.Generation.APIKey == "" && c.Generation.BaseURL == "" {
			errs = append(errs, fmt.Errorf("generation.api_key or generation.base_url is required when generation.provider is \"openai\""))
		}
	default:
		errs = append(errs, fmt.Errorf("generation.provider must be \"fake\" or \"openai\", got %q", c.Generation.Provider))
	}

	switch c.Index.Type {
	case "memory":
	case "postgres":
		if c.Index.Postgres.DSN == "" && c.Index.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("index.postgres.dsn or index.postgres.dsn_file is required when index.type is \"postgres\""))
		}
	case "qdrant":
		if c.Index.Qdrant.URL == "" {
			errs = append(errs, fmt.Errorf("index.qdrant.url is required when index.type is \"qdrant\""))
		}
	default:
		errs = append(errs, fmt.Errorf("index.type must be \"memory\", \"postgres\", or \"qdrant\", got %q", c.Index.Type))
	}
	if c.Index.Collection == "" {
		errs = append(errs, fmt.Errorf("index.collection is required"))
	}

	if c.MCP.Enabled && !strings.HasPrefix(c.MCP.Path, "/") {
		errs = append(errs, fmt.Errorf("mcp.path must start with \"/\", got %q", c.MCP.Path))
	}
	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json", "":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
