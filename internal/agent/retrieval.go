package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/raglab/docchat/internal/embedding"
	"github.com/raglab/docchat/internal/index"
	"github.com/raglab/docchat/internal/metrics"
	"github.com/raglab/docchat/internal/models"
	"github.com/raglab/docchat/internal/protocol"
)

const (
	// DefaultTopK is how many matches a search returns when the
	// caller does not ask for a specific k.
	DefaultTopK = 10

	// DefaultSimilarityFloor drops matches too dissimilar to ground
	// an answer on.
	DefaultSimilarityFloor = 0.35

	// maxIndexRetries bounds retry attempts against a flaky index.
	maxIndexRetries = 3
)

// RetrievalConfig tunes search behavior.
type RetrievalConfig struct {
	TopK            int
	SimilarityFloor float64
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{TopK: DefaultTopK, SimilarityFloor: DefaultSimilarityFloor}
}

// Retrieval owns all vector index access: it stores ingested batches
// and answers top-k semantic queries. Index calls go through a circuit
// breaker; transient failures are retried with bounded backoff before
// surfacing as ErrRetrievalUnavailable.
type Retrieval struct {
	idx      index.VectorIndex
	embedder embedding.Embedder
	cfg      RetrievalConfig
	breaker  *gobreaker.CircuitBreaker
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewRetrieval wires a retrieval agent and registers it on the broker.
func NewRetrieval(idx index.VectorIndex, embedder embedding.Embedder, cfg RetrievalConfig, broker *protocol.Broker, collector *metrics.Collector, logger *slog.Logger) *Retrieval {
	log := logger.With("agent", protocol.AgentRetrieval)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "vector-index",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	a := &Retrieval{
		idx:      idx,
		embedder: embedder,
		cfg:      cfg,
		breaker:  breaker,
		metrics:  collector,
		logger:   log,
	}
	broker.Register(protocol.AgentRetrieval, a.handle)
	return a
}

func (a *Retrieval) handle(ctx context.Context, env protocol.Envelope) (protocol.Envelope, error) {
	switch env.Type {
	case protocol.TypeDocumentProcessed:
		batch, ok := env.Payload.(protocol.DocumentProcessed)
		if !ok {
			return protocol.Envelope{}, fmt.Errorf("unexpected payload %T for %s", env.Payload, env.Type)
		}
		if err := a.Store(ctx, batch); err != nil {
			return protocol.Envelope{}, err
		}
		ack := protocol.NewWithTrace(protocol.AgentRetrieval, env.Sender, protocol.TypeDocumentProcessed,
			protocol.ErrorPayload{}, env.TraceID)
		return ack, nil

	case protocol.TypeContextRequest:
		req, ok := env.Payload.(protocol.ContextRequest)
		if !ok {
			return protocol.Envelope{}, fmt.Errorf("unexpected payload %T for %s", env.Payload, env.Type)
		}
		result, err := a.Search(ctx, req.Query, req.TopK, req.Namespace)
		if err != nil {
			return protocol.Envelope{}, err
		}
		resp := protocol.NewWithTrace(protocol.AgentRetrieval, env.Sender, protocol.TypeContextResponse,
			protocol.ContextResponse{Result: result}, env.TraceID)
		return resp, nil

	default:
		return protocol.Envelope{}, fmt.Errorf("unsupported envelope type %s", env.Type)
	}
}

// Store upserts a chunk+vector batch keyed by chunk id. Re-ingesting
// the same chunk id overwrites, never duplicates.
func (a *Retrieval) Store(ctx context.Context, batch protocol.DocumentProcessed) error {
	if len(batch.Chunks) != len(batch.Embeddings) {
		return fmt.Errorf("batch mismatch: %d chunks, %d embeddings", len(batch.Chunks), len(batch.Embeddings))
	}

	records := make([]index.Record, len(batch.Chunks))
	for i, chunk := range batch.Chunks {
		emb := batch.Embeddings[i]
		if emb.ChunkID != chunk.ID {
			return fmt.Errorf("batch mismatch: embedding %s does not belong to chunk %s", emb.ChunkID, chunk.ID)
		}
		records[i] = index.Record{
			ID:     chunk.ID,
			Vector: emb.Vector,
			Meta: index.Meta{
				ChunkID:     chunk.ID,
				DocumentID:  chunk.DocumentID,
				Seq:         chunk.Seq,
				Snippet:     chunk.Snippet(),
				Text:        chunk.Text,
				StartOffset: chunk.StartOffset,
				EndOffset:   chunk.EndOffset,
				Model:       emb.Model,
			},
		}
	}

	start := time.Now()
	err := a.withIndex(ctx, func() error {
		return a.idx.Upsert(ctx, batch.Namespace, records)
	})
	if err != nil {
		a.metrics.RecordFailure(metrics.OpUpsert)
		return err
	}
	a.metrics.RecordTiming(metrics.OpUpsert, time.Since(start))

	a.logger.Info("batch stored",
		"document_id", batch.Document.ID, "namespace", batch.Namespace, "records", len(records))
	return nil
}

// Search embeds the query with the ingestion embedder and returns the
// top-k matches above the similarity floor, ranked descending. An
// empty index or nothing above the floor yields an empty result, not
// an error.
func (a *Retrieval) Search(ctx context.Context, query string, topK int, namespace string) (models.RetrievalResult, error) {
	result := models.RetrievalResult{Query: query}

	if err := index.ValidateNamespace(namespace); err != nil {
		return result, err
	}
	if topK <= 0 {
		topK = a.cfg.TopK
	}

	vector, err := a.embedder.Embed(ctx, query)
	if err != nil {
		a.metrics.RecordFailure(metrics.OpSearch)
		return result, fmt.Errorf("embed query: %w", err)
	}

	start := time.Now()
	var scored []index.Scored
	err = a.withIndex(ctx, func() error {
		var qerr error
		scored, qerr = a.idx.Query(ctx, namespace, vector, topK)
		return qerr
	})
	if err != nil {
		a.metrics.RecordFailure(metrics.OpSearch)
		return result, err
	}
	a.metrics.RecordTiming(metrics.OpSearch, time.Since(start))

	for _, s := range scored {
		if s.Score < a.cfg.SimilarityFloor {
			continue
		}
		// Records embedded under a different model live in a
		// different embedding space; scores against them are
		// meaningless.
		if s.Record.Meta.Model != "" && s.Record.Meta.Model != a.embedder.Model() {
			a.logger.Warn("embedding model mismatch, skipping record",
				"chunk_id", s.Record.Meta.ChunkID,
				"stored_model", s.Record.Meta.Model,
				"query_model", a.embedder.Model())
			continue
		}
		result.Matches = append(result.Matches, models.ScoredChunk{
			Chunk: models.Chunk{
				ID:          s.Record.Meta.ChunkID,
				DocumentID:  s.Record.Meta.DocumentID,
				Seq:         s.Record.Meta.Seq,
				Text:        s.Record.Meta.Text,
				StartOffset: s.Record.Meta.StartOffset,
				EndOffset:   s.Record.Meta.EndOffset,
			},
			Score: s.Score,
		})
	}

	a.logger.Debug("search complete",
		"namespace", namespace, "top_k", topK, "matches", len(result.Matches))
	return result, nil
}

// DeleteDocument removes every vector of a document from its
// namespace so no orphaned records remain queryable.
func (a *Retrieval) DeleteDocument(ctx context.Context, namespace, documentID string) (int, error) {
	var removed int
	err := a.withIndex(ctx, func() error {
		var derr error
		removed, derr = a.idx.DeleteDocument(ctx, namespace, documentID)
		return derr
	})
	if err != nil {
		return 0, err
	}
	a.logger.Info("document vectors deleted",
		"document_id", documentID, "namespace", namespace, "removed", removed)
	return removed, nil
}

// withIndex runs an index operation behind the circuit breaker with
// bounded exponential backoff. Namespace and dimension errors are
// caller bugs and never retried.
func (a *Retrieval) withIndex(ctx context.Context, op func() error) error {
	attempt := func() error {
		_, err := a.breaker.Execute(func() (any, error) {
			return nil, op()
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, index.ErrInvalidNamespace) || errors.Is(err, index.ErrDimensionMismatch) {
			return backoff.Permanent(err)
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err))
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxIndexRetries), ctx)
	err := backoff.Retry(attempt, policy)
	if err == nil {
		return nil
	}
	if errors.Is(err, index.ErrInvalidNamespace) ||
		errors.Is(err, index.ErrDimensionMismatch) ||
		errors.Is(err, ErrRetrievalUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
}
