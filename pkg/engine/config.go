package engine

import "github.com/rhuss/askdoc/pkg/api"

// Config holds configuration for the core engine.
type Config struct {
	// Validation bounds incoming queries.
	Validation api.ValidationConfig
}

// validation returns the effective validation limits.
func (c Config) validation() api.ValidationConfig {
	if c.Validation.MaxQueryLength == 0 {
		return api.DefaultValidationConfig()
	}
	return c.Validation
}
