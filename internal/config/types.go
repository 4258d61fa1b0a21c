// Package config provides configuration loading for lingoeval.
//
// Configuration is read from a JSON file (config.json by default) and can
// be overridden with LINGOEVAL_-prefixed environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/scaledown-ai/lingoeval/internal/compression"
	"github.com/scaledown-ai/lingoeval/internal/logging"
)

// Config holds the complete lingoeval configuration.
type Config struct {
	// ContextSeparator is inserted between passages when they are joined
	// into one prompt, and force-preserved during compression so that
	// retention analysis can still find passage boundaries.
	ContextSeparator string `koanf:"context_separator"`

	// ForceTokens are passed to the compression service as tokens that
	// must survive compression. The separator is always included.
	ForceTokens []string `koanf:"force_tokens"`

	API                APIConfig                           `koanf:"api_config"`
	Compressor         CompressorConfig                    `koanf:"compressor_config"`
	Dataset            DatasetConfig                       `koanf:"dataset_config"`
	CompressionMethods map[string]compression.MethodConfig `koanf:"compression_methods"`
	Evaluation         EvaluationConfig                    `koanf:"evaluation"`
	Logging            logging.Config                      `koanf:"logging"`
}

// APIConfig holds the ScaleDown inference API settings.
type APIConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`

	// RequestsPerSecond paces successive API calls when > 0. Zero means
	// no pacing, matching a plain sequential run.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// CompressorConfig holds the LLMLingua-2 compression service settings.
type CompressorConfig struct {
	BaseURL string        `koanf:"base_url"`
	Model   string        `koanf:"model"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatasetConfig selects and windows the MS MARCO validation split.
type DatasetConfig struct {
	Version string `koanf:"version"`
	Path    string `koanf:"path"`

	// QueryType filters examples by exact query_type match.
	QueryType string `koanf:"query_type"`

	// MaxExamples caps how many filtered examples are collected.
	MaxExamples int `koanf:"max_examples"`

	// Start skips that many matching examples before collecting.
	Start int `koanf:"start"`
}

// EvaluationConfig locates the official MS MARCO scoring script.
type EvaluationConfig struct {
	ScriptDir string `koanf:"script_dir"`
	Python    string `koanf:"python"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ContextSeparator == "" {
		return fmt.Errorf("context_separator must not be empty")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api_config.base_url is required")
	}
	if c.API.APIKey == "" {
		return fmt.Errorf("api_config.api_key is required")
	}
	if c.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api_config.requests_per_second must be >= 0")
	}
	if c.Compressor.BaseURL == "" {
		return fmt.Errorf("compressor_config.base_url is required")
	}
	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset_config.path is required")
	}
	if c.Dataset.QueryType == "" {
		return fmt.Errorf("dataset_config.query_type is required")
	}
	if c.Dataset.MaxExamples <= 0 {
		return fmt.Errorf("dataset_config.max_examples must be > 0")
	}
	if c.Dataset.Start < 0 {
		return fmt.Errorf("dataset_config.start must be >= 0")
	}
	if len(c.CompressionMethods) == 0 {
		return fmt.Errorf("at least one compression method is required")
	}
	for name, method := range c.CompressionMethods {
		if err := method.Validate(); err != nil {
			return fmt.Errorf("compression_methods.%s: %w", name, err)
		}
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
