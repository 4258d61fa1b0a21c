// Package main implements the compression phase: filter MS MARCO, run
// every example through the configured compression methods, query the
// ScaleDown API on original and compressed contexts, and write the
// per-example records to JSON.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scaledown-ai/lingoeval/internal/compression"
	"github.com/scaledown-ai/lingoeval/internal/config"
	"github.com/scaledown-ai/lingoeval/internal/logging"
	"github.com/scaledown-ai/lingoeval/internal/runner"
	"github.com/scaledown-ai/lingoeval/internal/scaledown"
	"github.com/scaledown-ai/lingoeval/internal/tracker"
)

var (
	numExamples int
	outputPath  string
	configPath  string

	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "lingoeval-compress",
	Short: "Run prompt compression over the MS MARCO benchmark",
	Long: `lingoeval-compress filters the configured MS MARCO split, compresses each
example's passages under every configured method profile, collects API
responses for the original and compressed contexts, and writes one JSON
record per example.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runCompress,
}

func init() {
	rootCmd.Flags().IntVar(&numExamples, "num_examples", 0, "number of examples to process (0 = all filtered)")
	rootCmd.Flags().StringVar(&outputPath, "output", "compression_results.json", "output file")
	rootCmd.Flags().StringVar(&configPath, "config", "config.json", "config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCompress(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	compressorClient, err := compression.NewHTTPClient(cfg.Compressor.BaseURL, cfg.Compressor.Model, cfg.Compressor.Timeout)
	if err != nil {
		return fmt.Errorf("failed to create compressor client: %w", err)
	}

	service, err := compression.NewService(compressorClient, tracker.New(cfg.ContextSeparator), cfg.ForceTokens, logger)
	if err != nil {
		return fmt.Errorf("failed to create compression service: %w", err)
	}

	api, err := scaledown.NewHTTPClient(cfg.API.APIKey, cfg.API.BaseURL, cfg.API.Model, scaledown.Options{
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
	})
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	records, err := runner.New(cfg, service, api, logger).Run(cmd.Context(), numExamples)
	if err != nil {
		return err
	}

	if err := runner.SaveResults(records, outputPath); err != nil {
		return err
	}

	logger.Info("results saved",
		zap.String("path", outputPath),
		zap.Int("records", len(records)))
	return nil
}
