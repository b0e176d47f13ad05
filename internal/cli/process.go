package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/claimwarden/claimwarden/internal/model"
	"github.com/claimwarden/claimwarden/internal/pipeline"
)

var (
	strategy       string
	coverageCSV    string
	indexDir       string
	outputPath     string
	processTimeout time.Duration
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <claim.json>",
	Short: "Process a single claim into a coverage decision",
	Long: `Process reads a claim from a JSON file (or stdin with "-") and runs it
through the decision pipeline:
- Validate the policy against the coverage ledger
- Retrieve relevant policy text from the index
- Compare the claimed repair cost against market estimates
- Produce a coverage decision with deductible, payout and trace

Example:
  claimwarden process claim.json
  claimwarden process claim.json --strategy agent
  cat claim.json | claimwarden process - --output decision.json`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&strategy, "strategy", "", "orchestration strategy: graph or agent (default from config)")
	processCmd.Flags().StringVar(&coverageCSV, "coverage", "", "coverage ledger CSV path (default from config)")
	processCmd.Flags().StringVar(&indexDir, "index-dir", "", "policy index directory (default from config)")
	processCmd.Flags().StringVar(&outputPath, "output", "", "write the decision JSON to a file instead of stdout")
	processCmd.Flags().DurationVar(&processTimeout, "timeout", 3*time.Minute, "overall processing timeout")
}

func runProcess(cmd *cobra.Command, args []string) error {
	claim, err := readClaim(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyProcessFlags(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Processing claim %s (strategy: %s)\n", claim.ClaimNumber, cfg.Pipeline.Strategy)
	}

	deps, err := buildDeps(cfg)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, deps)
	if err != nil {
		return err
	}

	decision, err := p.ProcessClaim(ctx, claim)
	if err != nil {
		return fmt.Errorf("process claim %s: %w", claim.ClaimNumber, err)
	}

	return writeDecision(decision, outputPath)
}

func applyProcessFlags(cfg *model.Config) {
	if strategy != "" {
		cfg.Pipeline.Strategy = strategy
	}
	if coverageCSV != "" {
		cfg.Data.CoverageCSV = coverageCSV
	}
	if indexDir != "" {
		cfg.Data.IndexDir = indexDir
	}
}

// readClaim reads one claim from a file, or stdin when path is "-"
func readClaim(path string) (model.ClaimRequest, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return model.ClaimRequest{}, fmt.Errorf("read claim: %w", err)
	}

	var claim model.ClaimRequest
	if err := json.Unmarshal(data, &claim); err != nil {
		return model.ClaimRequest{}, fmt.Errorf("parse claim: %w", err)
	}
	if err := claim.Validate(); err != nil {
		return model.ClaimRequest{}, fmt.Errorf("invalid claim: %w", err)
	}
	return claim, nil
}

func writeDecision(decision model.ClaimDecision, path string) error {
	data, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Decision written to %s\n", path)
	return nil
}
