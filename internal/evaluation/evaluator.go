// Package evaluation wraps the official MS MARCO scoring script
// (ms_marco_eval.py). The script is consumed as a black box: records are
// reformatted into its prediction/reference file format, the script runs
// as a subprocess, and metric values are scraped from its stdout.
package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/scaledown-ai/lingoeval/internal/logging"
	"github.com/scaledown-ai/lingoeval/internal/runner"
)

// NoAnswerSentinel is what the MS MARCO scorer expects for a missing
// prediction.
const NoAnswerSentinel = "No Answer Present."

// OriginalMethod names the uncompressed baseline in record method lookups.
const OriginalMethod = "original"

// requiredScripts must exist in the script dir before anything runs.
var requiredScripts = []string{"ms_marco_eval.py", "rouge.py", "bleu.py"}

// metricKeywords mark stdout lines that carry a metric value.
var metricKeywords = []string{"rouge", "bleu", "f1", "exact"}

const downloadInstructions = `download the official evaluation scripts from
https://github.com/microsoft/MSMARCO-Question-Answering/tree/master/Evaluation
into the evaluation script directory:
  ms_marco_eval.py  (main script)
  rouge.py          (ROUGE dependency)
  bleu.py           (BLEU dependency)`

// Report is the outcome of scoring one method.
type Report struct {
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	RawOutput string             `json:"raw_output,omitempty"`
	Success   bool               `json:"success"`
	Error     string             `json:"error,omitempty"`
	Stderr    string             `json:"stderr,omitempty"`
}

// Evaluator shells out to the reference scorer once per method.
type Evaluator struct {
	scriptDir string
	python    string
	outputDir string
	logger    *logging.Logger
}

// New creates an evaluator. It fails fast when any required script is
// missing, with instructions on where to get them.
func New(scriptDir, python, outputDir string, logger *logging.Logger) (*Evaluator, error) {
	var missing []string
	for _, name := range requiredScripts {
		if _, err := os.Stat(filepath.Join(scriptDir, name)); err != nil {
			missing = append(missing, filepath.Join(scriptDir, name))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required files:\n  %s\n%s",
			strings.Join(missing, "\n  "), downloadInstructions)
	}

	return &Evaluator{
		scriptDir: scriptDir,
		python:    python,
		outputDir: outputDir,
		logger:    logger.Named("evaluation"),
	}, nil
}

// FormatPredictions flattens records into the scorer's prediction
// mapping: stringified query id to predicted answer. A record without
// the method, or with an empty response, maps to the sentinel.
func FormatPredictions(records []runner.Record, method string) map[string]string {
	out := make(map[string]string, len(records))
	for _, record := range records {
		response := ""
		if method == OriginalMethod {
			response = record.Original.Response
		} else if block, ok := record.Methods[method]; ok {
			response = block.Response
		}
		if response == "" {
			response = NoAnswerSentinel
		}
		out[strconv.FormatInt(record.QueryID, 10)] = response
	}
	return out
}

// FormatReferences flattens records into the scorer's reference mapping:
// stringified query id to a single-element ground-truth list.
func FormatReferences(records []runner.Record) map[string][]string {
	out := make(map[string][]string, len(records))
	for _, record := range records {
		out[strconv.FormatInt(record.QueryID, 10)] = []string{record.GroundTruth}
	}
	return out
}

// Evaluate scores one method: writes the predictions file, runs the
// scorer against the shared references file and scrapes its stdout.
func (e *Evaluator) Evaluate(ctx context.Context, records []runner.Record, method, referencesFile string) Report {
	predictionsFile := filepath.Join(e.outputDir, fmt.Sprintf("predictions_%s.json", method))
	if err := writeJSON(predictionsFile, FormatPredictions(records, method)); err != nil {
		return Report{Error: err.Error()}
	}

	scriptPath := filepath.Join(e.scriptDir, "ms_marco_eval.py")
	cmd := exec.CommandContext(ctx, e.python, scriptPath, referencesFile, predictionsFile)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Info("running scorer",
		zap.String("method", method),
		zap.String("command", strings.Join(cmd.Args, " ")))

	if err := cmd.Run(); err != nil {
		e.logger.Error("scorer failed",
			zap.String("method", method),
			zap.Error(err),
			zap.String("stderr", stderr.String()))
		return Report{
			Error:  err.Error(),
			Stderr: stderr.String(),
		}
	}

	output := strings.TrimSpace(stdout.String())
	return Report{
		Metrics:   parseMetrics(output),
		RawOutput: output,
		Success:   true,
	}
}

// EvaluateAll scores every method in order, writes the aggregate to
// msmarco_results.json and prints a summary table. One method's scorer
// failure does not stop the others.
func (e *Evaluator) EvaluateAll(ctx context.Context, records []runner.Record, methods []string) (map[string]Report, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir %s: %w", e.outputDir, err)
	}

	referencesFile := filepath.Join(e.outputDir, "references.json")
	if err := writeJSON(referencesFile, FormatReferences(records)); err != nil {
		return nil, err
	}

	reports := make(map[string]Report, len(methods))
	for _, method := range methods {
		e.logger.Info("evaluating method",
			zap.String("method", method),
			zap.Int("examples", len(records)))
		reports[method] = e.Evaluate(ctx, records, method, referencesFile)
	}

	resultsFile := filepath.Join(e.outputDir, "msmarco_results.json")
	if err := writeJSON(resultsFile, reports); err != nil {
		return nil, err
	}

	e.printSummary(methods, reports)
	e.logger.Info("evaluation done", zap.String("results", resultsFile))

	return reports, nil
}

// printSummary writes a metric table to stdout.
func (e *Evaluator) printSummary(methods []string, reports map[string]Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "METHOD\tRESULT")
	for _, method := range methods {
		report := reports[method]
		if !report.Success {
			fmt.Fprintf(w, "%s\tFAILED\n", method)
			continue
		}
		parts := make([]string, 0, len(report.Metrics))
		for name, value := range report.Metrics {
			parts = append(parts, fmt.Sprintf("%s:%.4f", name, value))
		}
		fmt.Fprintf(w, "%s\t%s\n", method, strings.Join(parts, " | "))
	}
}

// parseMetrics scrapes colon-separated metric lines from scorer stdout.
// A line counts when it contains a metric keyword and its right-hand
// side parses as a float; everything else is silently dropped.
func parseMetrics(output string) map[string]float64 {
	metrics := make(map[string]float64)
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, ":") {
			continue
		}
		lower := strings.ToLower(line)
		keyword := false
		for _, kw := range metricKeywords {
			if strings.Contains(lower, kw) {
				keyword = true
				break
			}
		}
		if !keyword {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		name := strings.TrimSpace(parts[0])
		value, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			continue
		}
		key := strings.ReplaceAll(strings.ToLower(name), "-", "_")
		metrics[key] = value
	}
	return metrics
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
