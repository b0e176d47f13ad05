package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/claimwarden/claimwarden/internal/index"
)

var (
	chunkSize     int
	chunkOverlap  int
	forceIngest   bool
	ingestTimeout time.Duration
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <policy.md>",
	Short: "Index a policy document for retrieval",
	Long: `Ingest chunks a policy document and stores embedded chunks in the
vector index used during claim processing.

Ingestion is idempotent: if the collection already holds documents the
command is a no-op. Use --force to rebuild the index from scratch.

Example:
  claimwarden ingest policy.md
  claimwarden ingest policy.md --chunk-size 800 --chunk-overlap 100
  claimwarden ingest policy.md --force`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk size in characters (default from config)")
	ingestCmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "overlap between chunks in characters (default from config)")
	ingestCmd.Flags().BoolVar(&forceIngest, "force", false, "discard the existing index and re-ingest")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 5*time.Minute, "ingestion timeout")
	ingestCmd.Flags().StringVar(&indexDir, "index-dir", "", "policy index directory (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if chunkSize > 0 {
		cfg.Index.ChunkSize = chunkSize
	}
	if chunkOverlap > 0 {
		cfg.Index.ChunkOverlap = chunkOverlap
	}
	if indexDir != "" {
		cfg.Data.IndexDir = indexDir
	}

	if forceIngest && cfg.Data.IndexDir != "" {
		if err := os.RemoveAll(cfg.Data.IndexDir); err != nil {
			return fmt.Errorf("discard existing index: %w", err)
		}
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	result, err := index.IngestFile(ctx, store, args[0], cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", args[0], err)
	}

	if result.Skipped {
		fmt.Printf("Index already contains %d documents, nothing to do (use --force to rebuild)\n", store.Count())
		return nil
	}
	fmt.Printf("Ingested %d chunks from %s\n", result.Chunks, args[0])
	return nil
}
