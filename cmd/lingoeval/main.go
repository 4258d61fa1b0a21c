// Package main implements the pipeline runner: a two-phase sequence
// (compression, then evaluation) where each phase is one subprocess
// invocation of the corresponding lingoeval binary. A nonzero exit from
// either phase aborts the pipeline.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/scaledown-ai/lingoeval/internal/config"
)

const (
	phaseCompression = "compression"
	phaseEvaluation  = "evaluation"
	phaseFull        = "full"

	compressBinary = "lingoeval-compress"
	evaluateBinary = "lingoeval-evaluate"
)

var (
	phase              string
	numExamples        int
	compressionResults string
	configPath         string

	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "lingoeval",
	Short: "Run the compression and evaluation pipeline",
	Long: `lingoeval sequences the two pipeline phases. The compression phase
produces a timestamped results file; the evaluation phase scores it with
the official MS MARCO evaluator. The full pipeline runs both in order.

Examples:
  # Full pipeline over 20 examples
  lingoeval --phase full --num_examples 20

  # Evaluate an existing results file
  lingoeval --phase evaluation --compression_results compression_results_20260827_120000.json`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runPipeline,
}

func init() {
	rootCmd.Flags().StringVar(&phase, "phase", phaseFull, "pipeline phase: compression, evaluation or full")
	rootCmd.Flags().IntVar(&numExamples, "num_examples", 0, "number of examples to process")
	rootCmd.Flags().StringVar(&compressionResults, "compression_results", "", "existing compression results file (evaluation phase)")
	rootCmd.Flags().StringVar(&configPath, "config", "config.json", "config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPipeline(cmd *cobra.Command, args []string) error {
	// Config must load and the scorer scripts must exist before any
	// phase runs; failing halfway through a run wastes API calls.
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := checkScorerScripts(cfg.Evaluation.ScriptDir); err != nil {
		return err
	}

	switch phase {
	case phaseCompression:
		output, err := runCompression()
		if err != nil {
			return err
		}
		fmt.Printf("compression completed: %s\n", output)
		fmt.Printf("next: lingoeval --phase evaluation --compression_results %s\n", output)
		return nil

	case phaseEvaluation:
		if compressionResults == "" {
			return fmt.Errorf("--compression_results is required for the evaluation phase")
		}
		if _, err := os.Stat(compressionResults); err != nil {
			return fmt.Errorf("compression results file not found: %s", compressionResults)
		}
		evalDir, err := runEvaluation(compressionResults)
		if err != nil {
			return err
		}
		fmt.Printf("evaluation completed: %s\n", evalDir)
		return nil

	case phaseFull:
		output, err := runCompression()
		if err != nil {
			return err
		}
		evalDir, err := runEvaluation(output)
		if err != nil {
			return err
		}
		fmt.Printf("pipeline completed\n")
		fmt.Printf("  compression: %s\n", output)
		fmt.Printf("  evaluation:  %s\n", evalDir)
		fmt.Printf("see %s for scores\n", filepath.Join(evalDir, "msmarco_results.json"))
		return nil

	default:
		return fmt.Errorf("unknown phase %q (want compression, evaluation or full)", phase)
	}
}

// checkScorerScripts verifies the official MS MARCO evaluation scripts
// are in place before starting.
func checkScorerScripts(scriptDir string) error {
	var missing []string
	for _, name := range []string{"ms_marco_eval.py", "rouge.py", "bleu.py"} {
		path := filepath.Join(scriptDir, name)
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	fmt.Fprintln(os.Stderr, "missing required files:")
	for _, path := range missing {
		fmt.Fprintf(os.Stderr, "  - %s\n", path)
	}
	fmt.Fprintln(os.Stderr, "download them from https://github.com/microsoft/MSMARCO-Question-Answering/tree/master/Evaluation")
	return fmt.Errorf("%d required file(s) missing", len(missing))
}

// runCompression runs the compression phase subprocess and returns the
// timestamped output file it wrote.
func runCompression() (string, error) {
	output := timestamped("compression_results_%s.json")

	cmdArgs := []string{"--output", output, "--config", configPath}
	if numExamples > 0 {
		cmdArgs = append(cmdArgs, "--num_examples", strconv.Itoa(numExamples))
	}

	if err := runPhase(compressBinary, cmdArgs); err != nil {
		return "", fmt.Errorf("compression phase failed: %w", err)
	}
	return output, nil
}

// runEvaluation runs the evaluation phase subprocess and returns its
// timestamped output directory.
func runEvaluation(resultsFile string) (string, error) {
	evalDir := timestamped("msmarco_eval_%s")

	cmdArgs := []string{
		"--results_file", resultsFile,
		"--output_dir", evalDir,
		"--config", configPath,
	}

	if err := runPhase(evaluateBinary, cmdArgs); err != nil {
		return "", fmt.Errorf("evaluation phase failed: %w", err)
	}
	return evalDir, nil
}

// runPhase executes one phase binary with inherited stdio.
func runPhase(binary string, args []string) error {
	path := siblingBinary(binary)
	fmt.Printf("running: %s\n", path)

	cmd := exec.Command(path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// siblingBinary resolves a phase binary next to the running executable,
// falling back to PATH lookup.
func siblingBinary(name string) string {
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	sibling := filepath.Join(filepath.Dir(exe), name)
	if _, err := os.Stat(sibling); err != nil {
		return name
	}
	return sibling
}

func timestamped(format string) string {
	return fmt.Sprintf(format, time.Now().Format("20060102_150405"))
}
