package cli

import (
	"fmt"

	"github.com/claimwarden/claimwarden/internal/index"
	"github.com/claimwarden/claimwarden/internal/ledger"
	"github.com/claimwarden/claimwarden/internal/model"
	"github.com/claimwarden/claimwarden/internal/oracle"
	"github.com/claimwarden/claimwarden/internal/pipeline"
	"github.com/claimwarden/claimwarden/internal/reasoner"
)

// openStore opens the policy text index with an OpenAI embedder
func openStore(cfg *model.Config) (*index.Store, error) {
	embedder, err := index.NewOpenAIEmbedder(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.Index.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	store, err := index.Open(index.StoreConfig{
		PersistDir:    cfg.Data.IndexDir,
		Collection:    cfg.Index.Collection,
		MinSimilarity: cfg.Index.MinSimilarity,
	}, embedder)
	if err != nil {
		return nil, fmt.Errorf("open policy index: %w", err)
	}
	return store, nil
}

// buildDeps wires the pipeline collaborators from configuration. The
// ledger and the index are required; a claim cannot be decided without
// them.
func buildDeps(cfg *model.Config) (pipeline.Deps, error) {
	led, err := ledger.Load(cfg.Data.CoverageCSV)
	if err != nil {
		return pipeline.Deps{}, fmt.Errorf("load coverage ledger: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return pipeline.Deps{}, err
	}

	llm, err := reasoner.NewOpenAIReasoner(cfg.LLM)
	if err != nil {
		return pipeline.Deps{}, fmt.Errorf("create reasoner: %w", err)
	}

	return pipeline.Deps{
		Validator: led,
		Searcher:  store,
		Reasoner:  llm,
		Oracle:    oracle.New(cfg.Oracle),
	}, nil
}
