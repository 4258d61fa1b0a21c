// Package main implements the evaluation phase: reformat compression
// records into the MS MARCO scorer's file format, run the official
// scoring script per method, and aggregate the metrics.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scaledown-ai/lingoeval/internal/config"
	"github.com/scaledown-ai/lingoeval/internal/evaluation"
	"github.com/scaledown-ai/lingoeval/internal/logging"
	"github.com/scaledown-ai/lingoeval/internal/runner"
)

var (
	resultsFile string
	outputDir   string
	configPath  string

	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "lingoeval-evaluate",
	Short: "Score compression results with the official MS MARCO evaluator",
	Long: `lingoeval-evaluate reads a compression results file, writes the
prediction and reference files the official MS MARCO scoring script
expects, runs the script once per method, and aggregates the ROUGE/BLEU
metrics into msmarco_results.json.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runEvaluate,
}

func init() {
	rootCmd.Flags().StringVar(&resultsFile, "results_file", "", "compression results JSON (required)")
	rootCmd.Flags().StringVar(&outputDir, "output_dir", "msmarco_eval", "output directory")
	rootCmd.Flags().StringVar(&configPath, "config", "config.json", "config file")
	rootCmd.MarkFlagRequired("results_file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	records, err := runner.LoadResults(resultsFile)
	if err != nil {
		return err
	}

	evaluator, err := evaluation.New(cfg.Evaluation.ScriptDir, cfg.Evaluation.Python, outputDir, logger)
	if err != nil {
		return err
	}

	// The baseline plus every configured method, in stable order.
	methods := []string{evaluation.OriginalMethod}
	names := make([]string, 0, len(cfg.CompressionMethods))
	for name := range cfg.CompressionMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	methods = append(methods, names...)

	logger.Info("scoring records",
		zap.Int("records", len(records)),
		zap.Strings("methods", methods))

	_, err = evaluator.EvaluateAll(cmd.Context(), records, methods)
	return err
}
