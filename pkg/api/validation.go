package api

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxQueryLength int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxQueryLength: 8192,
	}
}

// ValidateQuery checks a Query for validity and fills in the default
// strategy. It returns an *APIError describing the first validation
// failure, or nil if the query is valid.
func ValidateQuery(q *Query, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(q.Text) == "" {
		return NewInvalidRequestError("text", "text is required")
	}

	if cfg.MaxQueryLength > 0 && utf8.RuneCountInString(q.Text) > cfg.MaxQueryLength {
		return NewInvalidRequestError("text",
			fmt.Sprintf("text exceeds maximum of %d characters", cfg.MaxQueryLength))
	}

	strategy, err := ParseStrategy(string(q.Strategy))
	if err != nil {
		return NewInvalidRequestError("retrieve_strategy", err.Error())
	}
	q.Strategy = strategy

	return nil
}
