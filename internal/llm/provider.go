// Package llm wraps chat completion providers behind a common
// interface with configurable fallback.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrGeneration wraps provider failures so callers can distinguish
// generation errors from their own.
var ErrGeneration = errors.New("generation failed")

// Provider produces a completion for a system and user prompt pair.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Name() string
}

// ProviderType selects a completion backend.
type ProviderType string

const (
	ProviderGoogle ProviderType = "google"
	ProviderGroq   ProviderType = "groq"
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// Config holds completion provider configuration.
type Config struct {
	Provider ProviderType
	Model    string

	GoogleAPIKey string
	GroqAPIKey   string
	OpenAIAPIKey string
	OllamaHost   string
}

func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("llm model must not be empty")
	}
	switch c.Provider {
	case ProviderGoogle:
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("google API key required")
		}
	case ProviderGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("groq API key required")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai API key required")
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.Provider)
	}
	return nil
}
