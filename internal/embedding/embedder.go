// Package embedding generates text embeddings with multiple backend
// support via langchaingo.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbedding indicates the embedding backend failed for a chunk
// batch. Fatal to the affected batch, retryable by the caller.
var ErrEmbedding = errors.New("embedding failure")

// Embedder maps text to fixed-dimension vectors. Queries must be
// embedded with the same model as the ingested chunks; mismatched
// models silently degrade relevance, so implementations expose their
// model identity for callers to record and verify.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. More
	// efficient than repeated Embed calls for bulk ingestion.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the embedding model identifier.
	Model() string

	// Dimension returns the embedding vector dimension. Must match
	// the vector index dimension.
	Dimension() int
}

// ProviderType identifies the embedding backend.
type ProviderType string

const (
	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"

	// ProviderOpenAI uses the OpenAI embeddings API.
	ProviderOpenAI ProviderType = "openai"

	// ProviderGoogle uses the Gemini embeddings API.
	ProviderGoogle ProviderType = "google"
)

// Config selects and parameterizes an embedding backend.
type Config struct {
	Provider  ProviderType
	Model     string
	Dimension int

	// BatchSize caps texts per backend call during bulk ingestion.
	BatchSize int

	// Provider credentials/endpoints.
	OpenAIAPIKey string
	GoogleAPIKey string
	OllamaHost   string
}

// Validate checks that the config names a usable backend.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderGoogle:
	default:
		return fmt.Errorf("unknown embedding provider: %s", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("embedding model required")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Dimension)
	}
	return nil
}
