package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scaledown-ai/lingoeval/internal/compression"
	"github.com/scaledown-ai/lingoeval/internal/config"
	"github.com/scaledown-ai/lingoeval/internal/dataset"
	"github.com/scaledown-ai/lingoeval/internal/logging"
	"github.com/scaledown-ai/lingoeval/internal/tracker"
)

// fakeAPI implements scaledown.Client for tests.
type fakeAPI struct {
	response string
	err      error
	calls    int
}

func (f *fakeAPI) Respond(ctx context.Context, contextText, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func floatPtr(f float64) *float64 { return &f }

func testConfig(t *testing.T, datasetPath string) *config.Config {
	t.Helper()
	return &config.Config{
		ContextSeparator: "<sep>",
		ForceTokens:      []string{"<sep>", "\n", ".", "?"},
		Dataset: config.DatasetConfig{
			Path:        datasetPath,
			QueryType:   "description",
			MaxExamples: 10,
		},
		CompressionMethods: map[string]compression.MethodConfig{
			"method1_rate": {Rate: floatPtr(0.5)},
		},
	}
}

func newTestRunner(t *testing.T, cfg *config.Config, api *fakeAPI) *Runner {
	t.Helper()
	logger := logging.NewNop()
	svc, err := compression.NewService(&compression.MockClient{}, tracker.New(cfg.ContextSeparator), cfg.ForceTokens, logger)
	require.NoError(t, err)

	r := New(cfg, svc, api, logger)
	r.SetShowProgress(false)
	return r
}

func testExample() dataset.Example {
	return dataset.Example{
		QueryID:   42,
		Query:     "what is retention",
		QueryType: "description",
		Passages: dataset.Passages{
			PassageText: []string{"first passage text", "second passage text"},
			IsSelected:  []int{1, 0},
		},
		Answers: []string{"the answer"},
	}
}

func TestProcessExample(t *testing.T) {
	api := &fakeAPI{response: "model answer"}
	r := newTestRunner(t, testConfig(t, "unused"), api)

	record, err := r.ProcessExample(context.Background(), testExample())
	require.NoError(t, err)

	assert.Equal(t, int64(42), record.QueryID)
	assert.Equal(t, "the answer", record.GroundTruth)
	assert.Equal(t, []int{1, 0}, record.IsSelected)

	// Baseline joins passages with a blank line, not the separator.
	assert.Equal(t, "first passage text\n\nsecond passage text", record.Original.Context)
	assert.Equal(t, "model answer", record.Original.Response)
	assert.Equal(t, 6, record.Original.TokenCount)

	method, ok := record.Methods["method1_rate"]
	require.True(t, ok)
	assert.Equal(t, "model answer", method.Response)
	require.NotNil(t, method.CompressionResult)
	assert.False(t, method.CompressionResult.Degraded)
	assert.Equal(t, method.CompressionResult.CompressedPrompt, method.Context)

	// One call for the baseline, one per method.
	assert.Equal(t, 2, api.calls)
}

func TestProcessExampleAPIFailureYieldsEmptyResponse(t *testing.T) {
	api := &fakeAPI{err: errors.New("connection refused")}
	r := newTestRunner(t, testConfig(t, "unused"), api)

	record, err := r.ProcessExample(context.Background(), testExample())
	require.NoError(t, err)

	assert.Empty(t, record.Original.Response)
	assert.Empty(t, record.Methods["method1_rate"].Response)
}

func TestProcessExampleNoPassages(t *testing.T) {
	r := newTestRunner(t, testConfig(t, "unused"), &fakeAPI{})

	ex := testExample()
	ex.Passages.PassageText = nil

	_, err := r.ProcessExample(context.Background(), ex)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no passages")
}

func TestRunSkipsFailingExamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	content := `[
		{"query_id": 1, "query": "q1", "query_type": "description",
		 "passages": {"passage_text": ["p1"], "is_selected": [1]}, "answers": ["a1"]},
		{"query_id": 2, "query": "q2", "query_type": "description",
		 "passages": {"passage_text": [], "is_selected": []}, "answers": ["a2"]},
		{"query_id": 3, "query": "q3", "query_type": "description",
		 "passages": {"passage_text": ["p3"], "is_selected": [0]}, "answers": ["a3"]}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	r := newTestRunner(t, testConfig(t, path), &fakeAPI{response: "ok"})

	records, err := r.Run(context.Background(), 0)
	require.NoError(t, err)

	// The passage-less example is dropped, the rest survive in order.
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].QueryID)
	assert.Equal(t, int64(3), records[1].QueryID)
}

func TestRunHonorsLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	content := `[
		{"query_id": 1, "query": "q", "query_type": "description",
		 "passages": {"passage_text": ["p"], "is_selected": [1]}, "answers": ["a"]},
		{"query_id": 2, "query": "q", "query_type": "description",
		 "passages": {"passage_text": ["p"], "is_selected": [1]}, "answers": ["a"]}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	r := newTestRunner(t, testConfig(t, path), &fakeAPI{response: "ok"})

	records, err := r.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSaveAndLoadResults(t *testing.T) {
	api := &fakeAPI{response: "answer"}
	r := newTestRunner(t, testConfig(t, "unused"), api)

	record, err := r.ProcessExample(context.Background(), testExample())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, SaveResults([]Record{record}, path))

	loaded, err := LoadResults(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, record.QueryID, loaded[0].QueryID)
	assert.Equal(t, record.Original.Response, loaded[0].Original.Response)

	method, ok := loaded[0].Methods["method1_rate"]
	require.True(t, ok)
	assert.Equal(t, "answer", method.Response)
	require.NotNil(t, method.CompressionResult)
}
