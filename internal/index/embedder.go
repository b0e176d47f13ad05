package index

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns text into a vector for similarity search
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const embedderCacheSize = 4096

// openaiEmbedder implements Embedder against the OpenAI embeddings API,
// with an LRU cache so repeated queries embed only once.
type openaiEmbedder struct {
	client *openai.Client
	model  string
	cache  *lru.Cache[string, []float32]
}

// NewOpenAIEmbedder creates an embedder backed by the OpenAI API
func NewOpenAIEmbedder(apiKey, baseURL, model string) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	cache, err := lru.New[string, []float32](embedderCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &openaiEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		cache:  cache,
	}, nil
}

// Embed returns the embedding for text, consulting the cache first
func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	embedding := resp.Data[0].Embedding
	e.cache.Add(text, embedding)
	return embedding, nil
}
