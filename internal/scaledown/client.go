// Package scaledown is a minimal client for the ScaleDown inference API.
package scaledown

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client defines the inference API surface the runner depends on.
// This enables testing with fakes.
type Client interface {
	// Respond sends a context and prompt and returns the model's answer.
	Respond(ctx context.Context, contextText, prompt string) (string, error)
}

// HTTPClient implements Client against the ScaleDown HTTP API.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// request is the fixed payload shape the API expects.
type request struct {
	Context   string        `json:"context"`
	Model     string        `json:"model"`
	ScaleDown scaleDownOpts `json:"scaledown"`
	Prompt    string        `json:"prompt"`
}

type scaleDownOpts struct {
	Rate int `json:"rate"`
}

// response carries the field the harness reads; everything else in the
// body is ignored.
type response struct {
	FullResponse string `json:"full_response"`
}

// Options tunes client behavior beyond the required credentials.
type Options struct {
	Timeout time.Duration

	// RequestsPerSecond paces successive calls when > 0.
	RequestsPerSecond float64
}

// NewHTTPClient creates a ScaleDown API client.
func NewHTTPClient(apiKey, baseURL, model string, opts Options) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if model == "" {
		model = "gemini/gemini-2.0-flash"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &HTTPClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: limiter,
	}, nil
}

// Respond issues one synchronous request. A single best-effort attempt:
// no retry, no backoff. The caller decides what a missing response means.
func (c *HTTPClient) Respond(ctx context.Context, contextText, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	payload := request{
		Context:   contextText,
		Model:     c.model,
		ScaleDown: scaleDownOpts{Rate: 0},
		Prompt:    prompt,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return out.FullResponse, nil
}
