package compression

import (
	"context"
	"fmt"
	"strings"
)

// MockClient implements Client without a running compression server.
// It simulates compression by keeping every other word, which is enough
// for exercising routing, retention analysis and fallback paths in tests.
type MockClient struct {
	// Err, when set, is returned from every Compress call.
	Err error

	// LastRequest records the most recent request for assertions.
	LastRequest *Request
}

// Compress implements Client with deterministic fake compression.
func (m *MockClient) Compress(ctx context.Context, req Request) (*Response, error) {
	m.LastRequest = &req
	if m.Err != nil {
		return nil, m.Err
	}

	full := strings.Join(req.Context, " ")
	words := strings.Fields(full)

	kept := make([]string, 0, (len(words)+1)/2)
	for i, w := range words {
		if i%2 == 0 {
			kept = append(kept, w)
		}
	}
	compressed := strings.Join(kept, " ")
	if compressed == "" {
		compressed = full
	}

	origin := len(words)
	reduced := len(kept)
	if origin == 0 {
		origin = 1
		reduced = 1
	}

	return &Response{
		CompressedPrompt: compressed,
		Rate:             fmt.Sprintf("%.1f%%", 100*float64(reduced)/float64(origin)),
		Ratio:            fmt.Sprintf("%.1fx", float64(origin)/float64(reduced)),
		OriginTokens:     origin,
		CompressedTokens: reduced,
	}, nil
}
