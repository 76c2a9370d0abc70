// Package config provides unified configuration for the askdoc server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (ASKDOC_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the askdoc server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Chunker       ChunkerConfig       `yaml:"chunker"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Generation    GenerationConfig    `yaml:"generation"`
	Index         IndexConfig         `yaml:"index"`
	Staging       StagingConfig       `yaml:"staging"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 5m
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 5m
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxUploadSize   int64         `yaml:"max_upload_size"`  // bytes, default: 50 MiB
	MaxBodySize     int64         `yaml:"max_body_size"`    // bytes, default: 1 MiB
}

// ChunkerConfig holds document splitting settings. Sizes are in runes.
type ChunkerConfig struct {
	Size    int `yaml:"size"`    // default: 1500
	Overlap int `yaml:"overlap"` // default: 150
}

// RetrievalConfig holds the retrieval engine parameters.
type RetrievalConfig struct {
	K      int     `yaml:"k"`       // default: 3
	FetchK int     `yaml:"fetch_k"` // default: 10
	Lambda float64 `yaml:"lambda"`  // default: 0.5
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // "hash" or "openai", default: "hash"
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"` // 0 = provider default
	BatchSize  int           `yaml:"batch_size"` // default: 64
	Timeout    time.Duration `yaml:"timeout"`    // default: 60s
}

// GenerationConfig selects and configures the generation model.
type GenerationConfig struct {
	Provider   string        `yaml:"provider"` // "fake" or "openai", default: "fake"
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Model      string        `yaml:"model"`
	MaxTokens  int           `yaml:"max_tokens"`
	Timeout    time.Duration `yaml:"timeout"` // default: 120s
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	Type       string         `yaml:"type"`       // "memory", "postgres" or "qdrant", default: "memory"
	Collection string         `yaml:"collection"` // default: "LLM_VECTOR_DB"
	MaxSize    int            `yaml:"max_size"`   // memory backend chunk limit, 0 = unlimited
	Postgres   PostgresConfig `yaml:"postgres"`
	Qdrant     QdrantConfig   `yaml:"qdrant"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// QdrantConfig holds Qdrant-specific settings.
type QdrantConfig struct {
	URL string `yaml:"url"` // default: "http://localhost:6333"
}

// StagingConfig controls where uploads are written before ingestion.
type StagingConfig struct {
	Dir string `yaml:"dir"` // empty = os.TempDir()
}

// MCPConfig holds the settings of the built-in MCP tool server.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/mcp"
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // TRACE, DEBUG, INFO, WARN, ERROR; default: INFO
	Debug  string `yaml:"debug"`  // comma separated debug categories
	Format string `yaml:"format"` // "text" or "json", default: "text"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     5 * time.Minute,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadSize:   50 << 20,
			MaxBodySize:     1 << 20,
		},
		Chunker: ChunkerConfig{
			Size:    1500,
			Overlap: 150,
		},
		Retrieval: RetrievalConfig{
			K:      3,
			FetchK: 10,
			Lambda: 0.5,
		},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			BatchSize: 64,
			Timeout:   60 * time.Second,
		},
		Generation: GenerationConfig{
			Provider: "fake",
			Timeout:  120 * time.Second,
		},
		Index: IndexConfig{
			Type:       "memory",
			Collection: "LLM_VECTOR_DB",
			Postgres: PostgresConfig{
				MaxConns:       10,
				MigrateOnStart: true,
			},
			Qdrant: QdrantConfig{
				URL: "http://localhost:6333",
			},
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
