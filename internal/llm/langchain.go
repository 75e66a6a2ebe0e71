package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Client is a langchaingo-backed Provider.
type Client struct {
	llm       llms.Model
	provider  ProviderType
	modelName string
}

var _ Provider = (*Client)(nil)

// NewClient creates a completion client for the configured provider.
// Groq is reached through its OpenAI-compatible API.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var model llms.Model
	var err error

	switch cfg.Provider {
	case ProviderGoogle:
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.GoogleAPIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create google model: %w", err)
		}

	case ProviderGroq:
		model, err = openai.New(
			openai.WithToken(cfg.GroqAPIKey),
			openai.WithModel(cfg.Model),
			openai.WithBaseURL(GroqBaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("create groq model: %w", err)
		}

	case ProviderOpenAI:
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.OllamaHost != "" {
			opts = append(opts, ollama.WithServerURL(cfg.OllamaHost))
		}
		model, err = ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}

	return &Client{llm: model, provider: cfg.Provider, modelName: cfg.Model}, nil
}

func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	response, err := c.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrGeneration, c.Name(), err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: %s: no response choices", ErrGeneration, c.Name())
	}
	return response.Choices[0].Content, nil
}

func (c *Client) Name() string {
	return fmt.Sprintf("%s/%s", c.provider, c.modelName)
}
