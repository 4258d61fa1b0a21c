package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/scaledown-ai/lingoeval/internal/logging"
)

const (
	// envPrefix namespaces lingoeval environment overrides.
	envPrefix = "LINGOEVAL_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// sectionPrefixes maps environment variable prefixes to config sections.
// Checked in order; longer prefixes first so API_CONFIG_ wins over API_.
var sectionPrefixes = []struct {
	prefix  string
	section string
}{
	{"API_CONFIG_", "api_config"},
	{"COMPRESSOR_CONFIG_", "compressor_config"},
	{"DATASET_CONFIG_", "dataset_config"},
	{"EVALUATION_", "evaluation"},
	{"LOGGING_", "logging"},
}

// Load loads configuration from a JSON file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (LINGOEVAL_API_CONFIG_API_KEY, ...)
//  2. JSON config file (config.json by default)
//  3. Hardcoded defaults
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		configPath = "config.json"
	}

	f, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := k.Load(rawbytes.Provider(content), json.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	// Override with environment variables. LINGOEVAL_API_CONFIG_API_KEY
	// maps to api_config.api_key; unprefixed sections map to top-level
	// keys (LINGOEVAL_CONTEXT_SEPARATOR -> context_separator).
	if err := k.Load(env.Provider(envPrefix, ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// transformEnv maps an environment variable name (prefix already
// stripped by the provider) to a koanf key path.
func transformEnv(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	for _, sp := range sectionPrefixes {
		if strings.HasPrefix(s, sp.prefix) {
			field := strings.ToLower(strings.TrimPrefix(s, sp.prefix))
			return sp.section + "." + field
		}
	}
	return strings.ToLower(s)
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.ContextSeparator == "" {
		cfg.ContextSeparator = "<sep>"
	}
	if len(cfg.ForceTokens) == 0 {
		cfg.ForceTokens = []string{cfg.ContextSeparator, "\n", ".", "?"}
	}

	// API defaults
	if cfg.API.Model == "" {
		cfg.API.Model = "gemini/gemini-2.0-flash"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 60 * time.Second
	}

	// Compressor defaults
	if cfg.Compressor.Model == "" {
		cfg.Compressor.Model = "microsoft/llmlingua-2-xlm-roberta-large-meetingbank"
	}
	if cfg.Compressor.Timeout == 0 {
		cfg.Compressor.Timeout = 120 * time.Second
	}

	// Dataset defaults
	if cfg.Dataset.Version == "" {
		cfg.Dataset.Version = "v2.1"
	}
	if cfg.Dataset.MaxExamples == 0 {
		cfg.Dataset.MaxExamples = 100
	}

	// Evaluation defaults
	if cfg.Evaluation.ScriptDir == "" {
		cfg.Evaluation.ScriptDir = "evaluation"
	}
	if cfg.Evaluation.Python == "" {
		cfg.Evaluation.Python = "python3"
	}

	// Logging defaults
	if cfg.Logging.Level == "" || cfg.Logging.Format == "" {
		def := logging.NewDefaultConfig()
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = def.Level
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = def.Format
		}
	}
}
