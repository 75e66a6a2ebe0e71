// Package app is the composition root: it builds every service handle
// from configuration and wires the agents together. Nothing in the
// pipeline holds global state; all lifecycles end here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raglab/docchat/internal/agent"
	"github.com/raglab/docchat/internal/chunker"
	"github.com/raglab/docchat/internal/config"
	"github.com/raglab/docchat/internal/embedding"
	"github.com/raglab/docchat/internal/history"
	"github.com/raglab/docchat/internal/index"
	"github.com/raglab/docchat/internal/llm"
	"github.com/raglab/docchat/internal/metrics"
	"github.com/raglab/docchat/internal/parser"
	"github.com/raglab/docchat/internal/protocol"
)

// App bundles the wired pipeline.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Broker    *protocol.Broker
	Metrics   *metrics.Collector
	Ingestion *agent.Ingestion
	Retrieval *agent.Retrieval
	Chat      *agent.Chat
	Response  *agent.Response

	closers []func(context.Context) error
}

// New builds the full pipeline from configuration.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &App{Config: cfg, Logger: logger}
	a.Broker = protocol.NewBroker()
	a.Metrics = metrics.NewCollector()

	embedder, err := embedding.New(ctx, embedding.Config{
		Provider:     embedding.ProviderType(cfg.EmbeddingProvider),
		Model:        cfg.EmbeddingModel,
		Dimension:    cfg.EmbeddingDimension,
		BatchSize:    cfg.EmbeddingBatchSize,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		GoogleAPIKey: cfg.GoogleAPIKey,
		OllamaHost:   cfg.OllamaHost,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	idx, err := a.buildIndex(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := a.buildHistory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	primary, fallback, err := buildProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}

	chunkCfg := chunker.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
	a.Ingestion, err = agent.NewIngestion(parser.NewRegistry(), embedder, chunkCfg, a.Broker, a.Metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("ingestion agent: %w", err)
	}

	a.Retrieval = agent.NewRetrieval(idx, embedder, agent.RetrievalConfig{
		TopK:            cfg.TopK,
		SimilarityFloor: cfg.SimilarityFloor,
	}, a.Broker, a.Metrics, logger)

	a.Response = agent.NewResponse(primary, fallback, agent.ResponseConfig{
		ProviderTimeout: time.Duration(cfg.ProviderTimeoutSecs) * time.Second,
		PromptBudget:    cfg.PromptBudget,
	}, a.Broker, a.Metrics, logger)

	a.Chat = agent.NewChat(a.Broker, store, agent.ChatConfig{
		TopK:         cfg.TopK,
		HistoryLimit: cfg.HistoryLimit,
	}, logger)

	return a, nil
}

func (a *App) buildIndex(ctx context.Context, cfg config.Config, logger *slog.Logger) (index.VectorIndex, error) {
	switch config.Backend(cfg.VectorBackend) {
	case config.BackendSurreal:
		store, err := index.NewSurreal(ctx, index.SurrealConfig{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			Dimension: cfg.EmbeddingDimension,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("vector index: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.BackendMemory:
		return index.NewMemory(cfg.EmbeddingDimension), nil
	default:
		return nil, fmt.Errorf("unsupported vector backend: %s", cfg.VectorBackend)
	}
}

func (a *App) buildHistory(ctx context.Context, cfg config.Config) (history.ConversationStore, error) {
	switch config.Backend(cfg.HistoryBackend) {
	case config.BackendMongo:
		store, err := history.NewMongo(ctx, history.MongoConfig{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		})
		if err != nil {
			return nil, fmt.Errorf("conversation store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.BackendMemory:
		return history.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.HistoryBackend)
	}
}

func buildProviders(ctx context.Context, cfg config.Config) (llm.Provider, llm.Provider, error) {
	primary, err := llm.NewClient(ctx, providerConfig(cfg, cfg.LLMProvider, cfg.LLMModel))
	if err != nil {
		return nil, nil, fmt.Errorf("primary provider: %w", err)
	}

	if cfg.LLMFallbackProvider == "" {
		return primary, nil, nil
	}
	fallback, err := llm.NewClient(ctx, providerConfig(cfg, cfg.LLMFallbackProvider, cfg.LLMFallbackModel))
	if err != nil {
		return nil, nil, fmt.Errorf("fallback provider: %w", err)
	}
	return primary, fallback, nil
}

func providerConfig(cfg config.Config, provider, model string) llm.Config {
	return llm.Config{
		Provider:     llm.ProviderType(provider),
		Model:        model,
		GoogleAPIKey: cfg.GoogleAPIKey,
		GroqAPIKey:   cfg.GroqAPIKey,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		OllamaHost:   cfg.OllamaHost,
	}
}

// Close releases every backend connection the app opened.
func (a *App) Close(ctx context.Context) error {
	var first error
	for _, close := range a.closers {
		if err := close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
