package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultBatchSize caps texts per backend call when the config does
// not set one.
const DefaultBatchSize = 100

// Client implements Embedder on top of langchaingo embedding backends,
// adding dimension validation and batch windowing.
type Client struct {
	model     embeddings.Embedder
	modelName string
	dimension int
	batchSize int
}

var _ Embedder = (*Client)(nil)

// New creates an embedding client for the configured provider.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var client embeddings.EmbedderClient
	var err error

	switch cfg.Provider {
	case ProviderOllama:
		client, err = ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}

	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		client, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithEmbeddingModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}

	case ProviderGoogle:
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("Google API key required")
		}
		client, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.GoogleAPIKey),
			googleai.WithDefaultEmbeddingModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create googleai client: %w", err)
		}
	}

	model, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Client{
		model:     model,
		modelName: cfg.Model,
		dimension: cfg.Dimension,
		batchSize: batchSize,
	}, nil
}

// Model returns the embedding model identifier.
func (c *Client) Model() string { return c.modelName }

// Dimension returns the expected embedding dimension.
func (c *Client) Dimension() int { return c.dimension }

// Embed generates an embedding vector for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vectors, err := c.model.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no vector returned", ErrEmbedding)
	}

	vector := vectors[0]
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("%w: dimension mismatch: got %d, want %d (model: %s)",
			ErrEmbedding, len(vector), c.dimension, c.modelName)
	}

	slog.Debug("embedded text",
		"model", c.modelName, "text_len", len(text), "duration_ms", time.Since(start).Milliseconds())
	return vector, nil
}

// EmbedBatch generates embeddings for multiple texts, windowed to the
// configured batch size. All vectors are dimension-checked.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for lo := 0; lo < len(texts); lo += c.batchSize {
		hi := lo + c.batchSize
		if hi > len(texts) {
			hi = len(texts)
		}

		vectors, err := c.model.EmbedDocuments(ctx, texts[lo:hi])
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %v", ErrEmbedding, lo, hi, err)
		}
		if len(vectors) != hi-lo {
			return nil, fmt.Errorf("%w: batch %d-%d: got %d vectors, want %d",
				ErrEmbedding, lo, hi, len(vectors), hi-lo)
		}
		for i, v := range vectors {
			if len(v) != c.dimension {
				return nil, fmt.Errorf("%w: vector %d dimension mismatch: got %d, want %d",
					ErrEmbedding, lo+i, len(v), c.dimension)
			}
		}
		out = append(out, vectors...)
	}

	return out, nil
}
