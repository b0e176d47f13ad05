// Package index provides semantic search over chunked policy document text.
// The index is built once by ingestion and read concurrently during claim
// processing.
package index

import (
	"context"
	"fmt"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"

	"github.com/claimwarden/claimwarden/internal/model"
)

// StoreConfig holds vector store settings
type StoreConfig struct {
	PersistDir    string // empty for an in-memory store
	Collection    string
	MinSimilarity float32
}

// Document is one chunk of policy text to index
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Store wraps an embedded chromem-go collection
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     StoreConfig
}

// Open creates or opens the policy index
func Open(config StoreConfig, embedder Embedder) (*Store, error) {
	if config.Collection == "" {
		config.Collection = "policy_documents"
	}

	var db *chromem.DB
	var err error
	if config.PersistDir != "" {
		db, err = chromem.NewPersistentDB(filepath.Join(config.PersistDir, "chromem.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("open persistent index: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}

	collection, err := db.GetOrCreateCollection(config.Collection, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", config.Collection, err)
	}

	return &Store{db: db, collection: collection, config: config}, nil
}

// Add indexes documents. Chunk IDs are deterministic, so re-adding the same
// content overwrites rather than duplicates.
func (s *Store) Add(ctx context.Context, docs []Document) error {
	for _, doc := range docs {
		err := s.collection.AddDocument(ctx, chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: doc.Metadata,
		})
		if err != nil {
			return fmt.Errorf("add document %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Count returns the number of indexed chunks
func (s *Store) Count() int {
	return s.collection.Count()
}

// Search returns up to topK passages ranked by similarity to the query.
// An empty collection yields an empty result, not an error.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]model.RetrievedPassage, error) {
	if topK <= 0 {
		topK = 5
	}
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := s.collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	var passages []model.RetrievedPassage
	for _, r := range results {
		if r.Similarity < s.config.MinSimilarity {
			continue
		}
		passages = append(passages, model.RetrievedPassage{
			Text:   r.Content,
			Score:  r.Similarity,
			Source: r.ID,
		})
	}
	return passages, nil
}
