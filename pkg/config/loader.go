package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/askdoc/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, ASKDOC_CONFIG env, ./config.yaml, /etc/askdoc/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. ASKDOC_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/askdoc/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("ASKDOC_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/askdoc/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps ASKDOC_* environment variables to config fields.
// Malformed numbers are reported instead of being ignored.
func applyEnvOverrides(cfg *Config) error {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	var errs []string
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q is not an integer", name, v))
				return
			}
			*dst = n
		}
	}

	setInt("ASKDOC_PORT", &cfg.Server.Port)

	setInt("ASKDOC_CHUNK_SIZE", &cfg.Chunker.Size)
	setInt("ASKDOC_CHUNK_OVERLAP", &cfg.Chunker.Overlap)

	setString("ASKDOC_EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	setString("ASKDOC_EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL)
	setString("ASKDOC_EMBEDDING_MODEL", &cfg.Embedding.Model)
	setString("ASKDOC_EMBEDDING_API_KEY", &cfg.Embedding.APIKey)

	setString("ASKDOC_GENERATION_PROVIDER", &cfg.Generation.Provider)
	setString("ASKDOC_GENERATION_BASE_URL", &cfg.Generation.BaseURL)
	setString("ASKDOC_GENERATION_MODEL", &cfg.Generation.Model)
	setString("ASKDOC_GENERATION_API_KEY", &cfg.Generation.APIKey)

	// OPENAI_API_KEY is the fallback for both OpenAI providers.
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = v
		}
		if cfg.Generation.APIKey == "" {
			cfg.Generation.APIKey = v
		}
	}

	setString("ASKDOC_INDEX", &cfg.Index.Type)
	setString("ASKDOC_COLLECTION", &cfg.Index.Collection)
	setString("ASKDOC_POSTGRES_DSN", &cfg.Index.Postgres.DSN)
	setString("ASKDOC_QDRANT_URL", &cfg.Index.Qdrant.URL)

	setString("ASKDOC_STAGING_DIR", &cfg.Staging.Dir)

	setString("ASKDOC_LOG_FORMAT", &cfg.Logging.Format)

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// embedding.api_key_file -> embedding.api_key
	if cfg.Embedding.APIKeyFile != "" && cfg.Embedding.APIKey == "" {
		val, err := readSecretFile(cfg.Embedding.APIKeyFile)
		if err != nil {
			return fmt.Errorf("embedding.api_key_file: %w", err)
		}
		cfg.Embedding.APIKey = val
	}

	// generation.api_key_file -> generation.api_key
	if cfg.Generation.APIKeyFile != "" && cfg.Generation.APIKey == "" {
		val, err := readSecretFile(cfg.Generation.APIKeyFile)
		if err != nil {
			return fmt.Errorf("generation.api_key_file: %w", err)
		}
		cfg.Generation.APIKey = val
	}

	// index.postgres.dsn_file -> index.postgres.dsn
	if cfg.Index.Postgres.DSNFile != "" && cfg.Index.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Index.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("index.postgres.dsn_file: %w", err)
		}
		cfg.Index.Postgres.DSN = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
