package main

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckScorerScripts(t *testing.T) {
	dir := t.TempDir()
	require.Error(t, checkScorerScripts(dir))

	for _, name := range []string{"ms_marco_eval.py", "rouge.py", "bleu.py"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(""), 0600))
	}
	assert.NoError(t, checkScorerScripts(dir))
}

func TestCheckScorerScriptsPartial(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ms_marco_eval.py"), []byte(""), 0600))

	err := checkScorerScripts(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 required file(s) missing")
}

func TestTimestamped(t *testing.T) {
	name := timestamped("compression_results_%s.json")
	assert.Regexp(t, regexp.MustCompile(`^compression_results_\d{8}_\d{6}\.json$`), name)
}

func TestSiblingBinaryFallsBackToPath(t *testing.T) {
	// No binary with this name next to the test executable.
	assert.Equal(t, "definitely-not-a-real-binary", siblingBinary("definitely-not-a-real-binary"))
}
