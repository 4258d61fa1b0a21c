package compression

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient implements Client against an LLMLingua-2 compression server.
type HTTPClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// serviceError is the error envelope the compression server returns on
// non-200 responses.
type serviceError struct {
	Error string `json:"error"`
}

// NewHTTPClient creates a compression service client.
func NewHTTPClient(baseURL, model string, timeout time.Duration) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &HTTPClient{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Compress sends one compression request and parses the result.
func (c *HTTPClient) Compress(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compress", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("compression request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp serviceError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("compression service error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("compression service error (%d): %s", resp.StatusCode, string(body))
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.CompressedPrompt == "" {
		return nil, fmt.Errorf("empty compressed prompt in response")
	}

	return &out, nil
}
