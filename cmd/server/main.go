// Command server runs the askdoc document question answering service.
//
// Configuration is read from a YAML file (--config, ASKDOC_CONFIG,
// ./config.yaml or /etc/askdoc/config.yaml) and ASKDOC_* environment
// variables. A .env file in the working directory is loaded first.
//
// Frequently used variables:
//
//	ASKDOC_PORT                - Listen port (default: 8080)
//	ASKDOC_INDEX               - Vector index: "memory", "postgres" or "qdrant" (default: "memory")
//	ASKDOC_POSTGRES_DSN        - PostgreSQL connection string
//	ASKDOC_QDRANT_URL          - Qdrant URL (default: http://localhost:6333)
//	ASKDOC_EMBEDDING_PROVIDER  - "hash" or "openai" (default: "hash")
//	ASKDOC_GENERATION_PROVIDER - "fake" or "openai" (default: "fake")
//	OPENAI_API_KEY             - API key for the OpenAI providers
//	ASKDOC_DEBUG               - Debug categories (ingest,retrieval,index,...)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/askdoc/pkg/config"
	"github.com/rhuss/askdoc/pkg/debug"
	"github.com/rhuss/askdoc/pkg/docstore"
	"github.com/rhuss/askdoc/pkg/embedding"
	"github.com/rhuss/askdoc/pkg/engine"
	"github.com/rhuss/askdoc/pkg/generation"
	"github.com/rhuss/askdoc/pkg/index"
	"github.com/rhuss/askdoc/pkg/index/memory"
	"github.com/rhuss/askdoc/pkg/index/postgres"
	"github.com/rhuss/askdoc/pkg/index/qdrant"
	"github.com/rhuss/askdoc/pkg/mcpserver"
	"github.com/rhuss/askdoc/pkg/retrieval"
	transporthttp "github.com/rhuss/askdoc/pkg/transport/http"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	// .env is optional.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	debug.Init(debug.Options{
		Categories: cfg.Logging.Debug,
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
	})

	idx, err := newIndex(cfg)
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}

	embedder := newEmbedder(cfg)

	docs, err := docstore.New(idx, embedder, docstore.Config{
		StagingDir:   cfg.Staging.Dir,
		BatchSize:    cfg.Embedding.BatchSize,
		ChunkSize:    cfg.Chunker.Size,
		ChunkOverlap: cfg.Chunker.Overlap,
		Retrieval: retrieval.Config{
			K:      cfg.Retrieval.K,
			FetchK: cfg.Retrieval.FetchK,
			Lambda: cfg.Retrieval.Lambda,
		},
	})
	if err != nil {
		idx.Close()
		return fmt.Errorf("creating document store: %w", err)
	}
	defer docs.Close()

	eng, err := engine.New(docs, newGenerator(cfg), engine.Config{})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithMaxUploadSize(cfg.Server.MaxUploadSize),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithMetrics(cfg.Observability.Metrics.Enabled),
	}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithHandler("GET "+cfg.Observability.Metrics.Path, promhttp.Handler()))
	}
	if cfg.MCP.Enabled {
		mcpHandler := mcpserver.New(eng, version).Handler()
		opts = append(opts, transporthttp.WithHandler(cfg.MCP.Path, mcpHandler))
		slog.Info("mcp server enabled", "path", cfg.MCP.Path)
	}

	slog.Info("askdoc configured",
		"version", version,
		"index", cfg.Index.Type,
		"collection", cfg.Index.Collection,
		"embedding", cfg.Embedding.Provider,
		"generation", cfg.Generation.Provider,
	)

	return transporthttp.NewServer(eng, opts...).ListenAndServe()
}

func newIndex(cfg *config.Config) (index.Index, error) {
	switch cfg.Index.Type {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Index.Postgres.DSN,
			Collection:     cfg.Index.Collection,
			MaxConns:       cfg.Index.Postgres.MaxConns,
			MigrateOnStart: cfg.Index.Postgres.MigrateOnStart,
		})
	case "qdrant":
		return qdrant.New(cfg.Index.Qdrant.URL, cfg.Index.Collection), nil
	default:
		return memory.New(cfg.Index.MaxSize), nil
	}
}

func newEmbedder(cfg *config.Config) embedding.Embedder {
	if cfg.Embedding.Provider == "openai" {
		return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			APIKey:     cfg.Embedding.APIKey,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.Timeout,
		})
	}
	return embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
}

func newGenerator(cfg *config.Config) generation.Generator {
	if cfg.Generation.Provider == "openai" {
		return generation.NewOpenAI(generation.OpenAIConfig{
			BaseURL:   cfg.Generation.BaseURL,
			APIKey:    cfg.Generation.APIKey,
			Model:     cfg.Generation.Model,
			MaxTokens: cfg.Generation.MaxTokens,
			Timeout:   cfg.Generation.Timeout,
		})
	}
	return generation.Fake{}
}
