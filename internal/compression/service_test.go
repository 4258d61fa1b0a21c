package compression

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scaledown-ai/lingoeval/internal/logging"
	"github.com/scaledown-ai/lingoeval/internal/tracker"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func newTestService(t *testing.T, client Client) *Service {
	t.Helper()
	tr := tracker.New("<sep>")
	svc, err := NewService(client, tr, []string{"<sep>", "\n", ".", "?"}, logging.NewNop())
	require.NoError(t, err)
	return svc
}

func TestCompressWithMethodRoutesRate(t *testing.T) {
	mock := &MockClient{}
	svc := newTestService(t, mock)

	contexts := []string{"first passage here", "second passage here"}
	result := svc.CompressWithMethod(context.Background(), contexts, "a question?", MethodConfig{Rate: floatPtr(0.5)})

	require.NotNil(t, mock.LastRequest)
	// Rate compression sends one combined context.
	require.Len(t, mock.LastRequest.Context, 1)
	assert.Contains(t, mock.LastRequest.Context[0], "<sep>")
	assert.Equal(t, 0.5, *mock.LastRequest.Rate)
	assert.True(t, mock.LastRequest.UseTokenLevelFilter)
	assert.False(t, mock.LastRequest.UseContextLevelFilter)

	assert.False(t, result.Degraded)
	assert.Empty(t, result.Error)
	assert.NotEmpty(t, result.CompressedPrompt)
	assert.NotEmpty(t, result.ContextAnalysis)
}

func TestCompressWithMethodRoutesTargetToken(t *testing.T) {
	mock := &MockClient{}
	svc := newTestService(t, mock)

	svc.CompressWithMethod(context.Background(), []string{"one", "two"}, "q", MethodConfig{TargetToken: intPtr(64)})

	require.NotNil(t, mock.LastRequest)
	require.Len(t, mock.LastRequest.Context, 1)
	assert.Equal(t, 64, *mock.LastRequest.TargetToken)
	assert.False(t, mock.LastRequest.UseContextLevelFilter)
}

func TestCompressWithMethodRoutesTargetContext(t *testing.T) {
	mock := &MockClient{}
	svc := newTestService(t, mock)

	contexts := []string{"one", "two", "three"}
	svc.CompressWithMethod(context.Background(), contexts, "q", MethodConfig{TargetContext: intPtr(2)})

	require.NotNil(t, mock.LastRequest)
	// Context-level filtering keeps the passages separate.
	assert.Equal(t, contexts, mock.LastRequest.Context)
	assert.Equal(t, 2, *mock.LastRequest.TargetContext)
	assert.True(t, mock.LastRequest.UseContextLevelFilter)
	assert.True(t, mock.LastRequest.UseTokenLevelFilter)
}

func TestCompressWithMethodNoKnobDegrades(t *testing.T) {
	mock := &MockClient{}
	svc := newTestService(t, mock)

	contexts := []string{"alpha beta", "gamma delta"}
	result := svc.CompressWithMethod(context.Background(), contexts, "q", MethodConfig{})

	// Never calls the service, never errors: degraded result instead.
	assert.Nil(t, mock.LastRequest)
	assert.True(t, result.Degraded)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, "alpha beta <sep> gamma delta", result.CompressedPrompt)
	assert.Equal(t, "100%", result.CompressionRate)
	assert.Equal(t, "1.0x", result.CompressionRatio)
	assert.Equal(t, result.OriginalTokens, result.CompressedTokens)
	assert.Empty(t, result.ContextAnalysis)
}

func TestCompressWithMethodClientFailureDegrades(t *testing.T) {
	mock := &MockClient{Err: errors.New("model not loaded")}
	svc := newTestService(t, mock)

	contexts := []string{"alpha beta", "gamma delta"}
	result := svc.CompressWithMethod(context.Background(), contexts, "q", MethodConfig{Rate: floatPtr(0.3)})

	assert.True(t, result.Degraded)
	assert.Contains(t, result.Error, "model not loaded")
	// Fallback is the uncompressed combined context.
	assert.Equal(t, "alpha beta <sep> gamma delta", result.CompressedPrompt)
	assert.Equal(t, 5, result.OriginalTokens) // four words plus the separator
	assert.Equal(t, "100%", result.CompressionRate)
}

func TestCompressWithMethodAttachesRetention(t *testing.T) {
	mock := &MockClient{}
	svc := newTestService(t, mock)

	contexts := []string{"aa bb cc dd", "ee ff gg hh"}
	result := svc.CompressWithMethod(context.Background(), contexts, "q", MethodConfig{Rate: floatPtr(0.5)})

	require.Len(t, result.ContextAnalysis, 2)
	for i, stats := range result.ContextAnalysis {
		assert.GreaterOrEqual(t, stats.Ratio, 0.0, "passage %d", i)
		assert.LessOrEqual(t, stats.Ratio, 1.0, "passage %d", i)
		assert.Equal(t, 4, stats.OriginalWords, "passage %d", i)
	}
}

func TestMethodConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		method  MethodConfig
		wantErr bool
	}{
		{name: "rate only", method: MethodConfig{Rate: floatPtr(0.5)}},
		{name: "target token only", method: MethodConfig{TargetToken: intPtr(100)}},
		{name: "target context only", method: MethodConfig{TargetContext: intPtr(3)}},
		{name: "none", method: MethodConfig{}, wantErr: true},
		{
			name:    "two knobs",
			method:  MethodConfig{Rate: floatPtr(0.5), TargetToken: intPtr(100)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.method.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
