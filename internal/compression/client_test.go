package compression

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientCompress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/compress", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"some combined context"}, req.Context)
		assert.Equal(t, "why?", req.Question)
		assert.Equal(t, "test-model", req.Model)
		require.NotNil(t, req.Rate)
		assert.Equal(t, 0.4, *req.Rate)

		json.NewEncoder(w).Encode(Response{
			CompressedPrompt: "combined context",
			Rate:             "40.0%",
			Ratio:            "2.5x",
			OriginTokens:     100,
			CompressedTokens: 40,
		})
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, "test-model", 5*time.Second)
	require.NoError(t, err)

	rate := 0.4
	resp, err := client.Compress(context.Background(), Request{
		Context:  []string{"some combined context"},
		Question: "why?",
		Rate:     &rate,
	})
	require.NoError(t, err)
	assert.Equal(t, "combined context", resp.CompressedPrompt)
	assert.Equal(t, 100, resp.OriginTokens)
	assert.Equal(t, 40, resp.CompressedTokens)
}

func TestHTTPClientCompressServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "model not loaded"})
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, "", 5*time.Second)
	require.NoError(t, err)

	_, err = client.Compress(context.Background(), Request{Context: []string{"x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPClientCompressEmptyPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{CompressedPrompt: ""})
	}))
	defer server.Close()

	client, err := NewHTTPClient(server.URL, "", 5*time.Second)
	require.NoError(t, err)

	_, err = client.Compress(context.Background(), Request{Context: []string{"x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty compressed prompt")
}

func TestHTTPClientCompressUnreachable(t *testing.T) {
	client, err := NewHTTPClient("http://127.0.0.1:1", "", time.Second)
	require.NoError(t, err)

	_, err = client.Compress(context.Background(), Request{Context: []string{"x"}})
	require.Error(t, err)
}

func TestNewHTTPClientRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient("", "model", time.Second)
	require.Error(t, err)
}
