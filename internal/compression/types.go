package compression

import (
	"context"
	"fmt"

	"github.com/scaledown-ai/lingoeval/internal/tracker"
)

// Client is the black-box LLMLingua-2 compression service. The harness
// never looks inside it; it only relies on the request/response contract
// below.
type Client interface {
	Compress(ctx context.Context, req Request) (*Response, error)
}

// MethodConfig selects exactly one of the three compression knobs.
// Pointer fields distinguish "absent" from zero values.
type MethodConfig struct {
	// Rate keeps the given fraction of tokens (0 < rate <= 1).
	Rate *float64 `koanf:"rate" json:"rate,omitempty"`

	// TargetToken compresses down to a fixed token budget.
	TargetToken *int `koanf:"target_token" json:"target_token,omitempty"`

	// TargetContext keeps a fixed number of whole passages.
	TargetContext *int `koanf:"target_context" json:"target_context,omitempty"`
}

// Validate checks that exactly one knob is set.
func (m MethodConfig) Validate() error {
	set := 0
	if m.Rate != nil {
		set++
	}
	if m.TargetToken != nil {
		set++
	}
	if m.TargetContext != nil {
		set++
	}
	if set == 0 {
		return fmt.Errorf("one of rate, target_token or target_context is required")
	}
	if set > 1 {
		return fmt.Errorf("rate, target_token and target_context are mutually exclusive")
	}
	return nil
}

// Request is the wire request to the compression service.
type Request struct {
	Context  []string `json:"context"`
	Question string   `json:"question"`
	Model    string   `json:"model,omitempty"`

	Rate          *float64 `json:"rate,omitempty"`
	TargetToken   *int     `json:"target_token,omitempty"`
	TargetContext *int     `json:"target_context,omitempty"`

	ForceTokens           []string `json:"force_tokens,omitempty"`
	UseTokenLevelFilter   bool     `json:"use_token_level_filter"`
	UseContextLevelFilter bool     `json:"use_context_level_filter"`
}

// Response is the wire response from the compression service.
type Response struct {
	CompressedPrompt string `json:"compressed_prompt"`
	Rate             string `json:"rate"`
	Ratio            string `json:"ratio"`
	OriginTokens     int    `json:"origin_tokens"`
	CompressedTokens int    `json:"compressed_tokens"`
}

// Result is what the service hands back per (example, method) pair.
//
// It is a tagged variant rather than an error path: a failed compression
// yields Degraded=true with the uncompressed text and the failure reason
// in Error, so callers always get a usable prompt and one bad example
// cannot abort a batch.
type Result struct {
	CompressedPrompt string                `json:"compressed_prompt"`
	CompressionRate  string                `json:"compression_rate"`
	CompressionRatio string                `json:"compression_ratio"`
	OriginalTokens   int                   `json:"original_tokens"`
	CompressedTokens int                   `json:"compressed_tokens"`
	ContextAnalysis  map[int]tracker.Stats `json:"context_analysis"`
	Degraded         bool                  `json:"degraded,omitempty"`
	Error            string                `json:"error,omitempty"`
}
