// Package runner drives the compression phase: filter the dataset, run
// every example through each compression method plus the uncompressed
// baseline, collect API responses, and persist the records.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/scaledown-ai/lingoeval/internal/compression"
	"github.com/scaledown-ai/lingoeval/internal/config"
	"github.com/scaledown-ai/lingoeval/internal/dataset"
	"github.com/scaledown-ai/lingoeval/internal/logging"
	"github.com/scaledown-ai/lingoeval/internal/scaledown"
)

const tracerName = "github.com/scaledown-ai/lingoeval/internal/runner"

// Runner sequences the compression phase. Strictly single-threaded:
// examples are processed one at a time in input order.
type Runner struct {
	cfg        *config.Config
	loader     *dataset.Loader
	compressor *compression.Service
	api        scaledown.Client
	logger     *logging.Logger
	tracer     trace.Tracer

	// showProgress draws a progress bar on stderr during Run.
	showProgress bool
}

// New creates a runner.
func New(cfg *config.Config, compressor *compression.Service, api scaledown.Client, logger *logging.Logger) *Runner {
	return &Runner{
		cfg:          cfg,
		loader:       dataset.NewLoader(cfg.Dataset.Path),
		compressor:   compressor,
		api:          api,
		logger:       logger.Named("runner"),
		tracer:       otel.Tracer(tracerName),
		showProgress: true,
	}
}

// SetShowProgress toggles the stderr progress bar. Off in tests.
func (r *Runner) SetShowProgress(show bool) {
	r.showProgress = show
}

// methodNames returns the configured method names in stable order.
func (r *Runner) methodNames() []string {
	names := make([]string, 0, len(r.cfg.CompressionMethods))
	for name := range r.cfg.CompressionMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProcessExample runs one example through the baseline and every
// configured method. API failures are logged and recorded as empty
// responses; compression failures surface as degraded results. Only a
// malformed example fails outright.
func (r *Runner) ProcessExample(ctx context.Context, ex dataset.Example) (Record, error) {
	ctx, span := r.tracer.Start(ctx, "runner.process_example",
		trace.WithAttributes(attribute.Int64("query_id", ex.QueryID)),
	)
	defer span.End()

	contexts := ex.Passages.PassageText
	if len(contexts) == 0 {
		return Record{}, fmt.Errorf("example %d has no passages", ex.QueryID)
	}

	record := Record{
		QueryID:     ex.QueryID,
		Query:       ex.Query,
		GroundTruth: ex.GroundTruth(),
		Contexts:    contexts,
		IsSelected:  ex.Passages.IsSelected,
		Methods:     make(map[string]MethodResult, len(r.cfg.CompressionMethods)),
	}

	// Baseline: the uncompressed passages joined the way they would be
	// prompted without any compression in the loop.
	originalContext := strings.Join(contexts, "\n\n")
	record.Original = OriginalResult{
		Context:    originalContext,
		Response:   r.respond(ctx, originalContext, ex.Query),
		TokenCount: len(strings.Fields(originalContext)),
	}

	for _, name := range r.methodNames() {
		r.logger.Debug("processing method",
			zap.Int64("query_id", ex.QueryID),
			zap.String("method", name))

		result := r.compressor.CompressWithMethod(ctx, contexts, ex.Query, r.cfg.CompressionMethods[name])
		record.Methods[name] = MethodResult{
			CompressionResult: result,
			Context:           result.CompressedPrompt,
			Response:          r.respond(ctx, result.CompressedPrompt, ex.Query),
		}
	}

	return record, nil
}

// respond is the single best-effort API call: on any failure the error
// is logged and the response is empty. The evaluator later maps empty
// responses to the "No Answer Present." sentinel.
func (r *Runner) respond(ctx context.Context, contextText, prompt string) string {
	response, err := r.api.Respond(ctx, contextText, prompt)
	if err != nil {
		r.logger.Warn("API request failed", zap.Error(err))
		return ""
	}
	return response
}

// Run loads and filters the dataset, then processes up to limit examples
// (limit <= 0 means all filtered examples). Per-example failures are
// logged and skipped; the batch continues.
func (r *Runner) Run(ctx context.Context, limit int) ([]Record, error) {
	examples, err := r.loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	filtered := dataset.Filter(examples, dataset.FilterConfig{
		QueryType:   r.cfg.Dataset.QueryType,
		MaxExamples: r.cfg.Dataset.MaxExamples,
		Start:       r.cfg.Dataset.Start,
	})
	if limit > 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}

	r.logger.Info("processing examples",
		zap.Int("raw", len(examples)),
		zap.Int("filtered", len(filtered)),
		zap.String("query_type", r.cfg.Dataset.QueryType))

	var bar *progressbar.ProgressBar
	if r.showProgress {
		bar = progressbar.NewOptions(len(filtered),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("compressing"),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		)
	}

	records := make([]Record, 0, len(filtered))
	for i, ex := range filtered {
		record, err := r.processSafely(ctx, ex)
		if err != nil {
			r.logger.Error("example failed, skipping",
				zap.Int("index", i),
				zap.Int64("query_id", ex.QueryID),
				zap.Error(err))
		} else {
			records = append(records, record)
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	r.logger.Info("compression phase done",
		zap.Int("succeeded", len(records)),
		zap.Int("failed", len(filtered)-len(records)))

	return records, nil
}

// processSafely converts a panic in example processing into an error so
// one bad example cannot kill the batch.
func (r *Runner) processSafely(ctx context.Context, ex dataset.Example) (record Record, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic processing example %d: %v", ex.QueryID, rec)
		}
	}()
	return r.ProcessExample(ctx, ex)
}

// SaveResults writes the records as one indented JSON array. Whole-file
// overwrite, not append.
func SaveResults(records []Record, path string) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results to %s: %w", path, err)
	}
	return nil
}

// LoadResults reads a results file written by SaveResults.
func LoadResults(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results from %s: %w", path, err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse results %s: %w", path, err)
	}
	return records, nil
}
