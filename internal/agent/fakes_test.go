package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/raglab/docchat/internal/chunker"
	"github.com/raglab/docchat/internal/embedding"
	"github.com/raglab/docchat/internal/history"
	"github.com/raglab/docchat/internal/index"
	"github.com/raglab/docchat/internal/llm"
	"github.com/raglab/docchat/internal/metrics"
	"github.com/raglab/docchat/internal/parser"
	"github.com/raglab/docchat/internal/protocol"
)

const fakeDimension = 4

// fakeEmbedder returns preset vectors for known texts and a unit
// vector otherwise. Deterministic, so identical content embeds
// identically across calls.
type fakeEmbedder struct {
	vectors map[string][]float32
	failing bool
}

var _ embedding.Embedder = (*fakeEmbedder)(nil)

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: make(map[string][]float32)}
}

func (f *fakeEmbedder) set(text string, v []float32) { f.vectors[text] = v }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.failing {
		return nil, embedding.ErrEmbedding
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string  { return "fake-embed-v1" }
func (f *fakeEmbedder) Dimension() int { return fakeDimension }

// scriptedProvider returns canned answers, or an error until drained.
type scriptedProvider struct {
	name   string
	answer string
	err    error
	calls  int
}

func (p *scriptedProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.answer, nil
}

func (p *scriptedProvider) Name() string { return p.name }

// downIndex fails every call with a transient error.
type downIndex struct{}

var _ index.VectorIndex = downIndex{}

func (downIndex) Upsert(ctx context.Context, namespace string, records []index.Record) error {
	return index.ErrUnavailable
}

func (downIndex) Query(ctx context.Context, namespace string, vector []float32, k int) ([]index.Scored, error) {
	return nil, index.ErrUnavailable
}

func (downIndex) DeleteDocument(ctx context.Context, namespace, documentID string) (int, error) {
	return 0, index.ErrUnavailable
}

func (downIndex) Count(ctx context.Context, namespace string) (int, error) {
	return 0, index.ErrUnavailable
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pipeline bundles a fully wired in-memory agent stack for tests.
type pipeline struct {
	broker    *protocol.Broker
	ingestion *Ingestion
	retrieval *Retrieval
	chat      *Chat
	response  *Response
	idx       index.VectorIndex
	store     *history.Memory
	embedder  *fakeEmbedder
}

type pipelineOpts struct {
	chunkCfg chunker.Config
	idx      index.VectorIndex
	primary  *scriptedProvider
	fallback *scriptedProvider
}

func newPipeline(t *testing.T, opts pipelineOpts) *pipeline {
	t.Helper()

	logger := testLogger()
	collector := metrics.NewCollector()
	broker := protocol.NewBroker()
	embedder := newFakeEmbedder()
	store := history.NewMemory()

	if opts.chunkCfg.Size == 0 {
		opts.chunkCfg = chunker.DefaultConfig()
	}
	if opts.idx == nil {
		opts.idx = index.NewMemory(fakeDimension)
	}
	if opts.primary == nil {
		opts.primary = &scriptedProvider{name: "primary", answer: "ok"}
	}

	ingestion, err := NewIngestion(parser.NewRegistry(), embedder, opts.chunkCfg, broker, collector, logger)
	if err != nil {
		t.Fatalf("NewIngestion failed: %v", err)
	}
	retrieval := NewRetrieval(opts.idx, embedder, DefaultRetrievalConfig(), broker, collector, logger)

	var fallback llm.Provider
	if opts.fallback != nil {
		fallback = opts.fallback
	}
	response := NewResponse(opts.primary, fallback, DefaultResponseConfig(), broker, collector, logger)
	chat := NewChat(broker, store, DefaultChatConfig(), logger)

	return &pipeline{
		broker:    broker,
		ingestion: ingestion,
		retrieval: retrieval,
		chat:      chat,
		response:  response,
		idx:       opts.idx,
		store:     store,
		embedder:  embedder,
	}
}

var errProviderDown = errors.New("provider down")
