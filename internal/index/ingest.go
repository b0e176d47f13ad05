package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IngestResult reports what ingestion did
type IngestResult struct {
	Chunks  int  // chunks written
	Skipped bool // true when the collection was already populated
}

// IngestFile reads a policy document (plain text or markdown), chunks it and
// indexes the chunks. The operation is idempotent: a collection that already
// contains documents is left untouched.
func IngestFile(ctx context.Context, store *Store, path string, chunkSize, chunkOverlap int) (IngestResult, error) {
	if store.Count() > 0 {
		return IngestResult{Skipped: true}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("read policy document: %w", err)
	}
	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return IngestResult{}, fmt.Errorf("policy document %s contains no text", path)
	}

	chunks := ChunkText(text, chunkSize, chunkOverlap)
	docs := make([]Document, 0, len(chunks))
	source := filepath.Base(path)
	for i, chunk := range chunks {
		docs = append(docs, Document{
			ID:      ChunkID(i, chunk),
			Content: chunk,
			Metadata: map[string]string{
				"source":      source,
				"chunk_index": fmt.Sprintf("%d", i),
			},
		})
	}

	if err := store.Add(ctx, docs); err != nil {
		return IngestResult{}, fmt.Errorf("index policy document: %w", err)
	}

	return IngestResult{Chunks: len(docs)}, nil
}
