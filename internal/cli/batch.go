package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/claimwarden/claimwarden/internal/pipeline"
	"github.com/claimwarden/claimwarden/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <claims.json>",
	Short: "Process multiple claims from a file in parallel",
	Long: `Batch processes multiple claims concurrently:
- Read claims from a JSON array or one claim object per line
- Process claims in parallel with a configurable worker count
- Write one decision file per claim

Example:
  claimwarden batch claims.json
  claimwarden batch claims.jsonl --concurrency 8 --output-dir ./decisions
  claimwarden batch claims.json --strategy agent --timeout 15m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./claimwarden-decisions", "output directory for decision files")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&strategy, "strategy", "", "orchestration strategy: graph or agent (default from config)")
	batchCmd.Flags().StringVar(&coverageCSV, "coverage", "", "coverage ledger CSV path (default from config)")
	batchCmd.Flags().StringVar(&indexDir, "index-dir", "", "policy index directory (default from config)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyProcessFlags(cfg)

	deps, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	p, err := pipeline.New(cfg, deps)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	batch := worker.NewBatchProcessor(p, concurrency)
	results, err := batch.ProcessFile(ctx, args[0])
	if err != nil {
		return err
	}

	succeeded, failed := 0, 0
	for _, result := range results {
		if result.Error != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.ClaimNumber, result.Error)
			continue
		}

		path := filepath.Join(outputDir, result.ClaimNumber+".json")
		data, err := json.MarshalIndent(result.Decision, "", "  ")
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: encode decision: %v\n", result.ClaimNumber, err)
			continue
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.ClaimNumber, err)
			continue
		}

		succeeded++
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ %s -> %s\n", result.ClaimNumber, path)
		}
	}

	fmt.Fprintf(os.Stderr, "\nProcessed %d claims: %d succeeded, %d failed\n", len(results), succeeded, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d claims failed", failed, len(results))
	}
	return nil
}
