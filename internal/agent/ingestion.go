package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raglab/docchat/internal/chunker"
	"github.com/raglab/docchat/internal/embedding"
	"github.com/raglab/docchat/internal/metrics"
	"github.com/raglab/docchat/internal/models"
	"github.com/raglab/docchat/internal/parser"
	"github.com/raglab/docchat/internal/protocol"
)

// DefaultIngestWorkers bounds parallel document processing in a batch.
const DefaultIngestWorkers = 4

// UploadInput is one document handed to ingestion.
type UploadInput struct {
	Filename  string
	Data      []byte
	SessionID string
}

// Ingestion turns uploaded documents into chunk+vector batches and
// hands them to the retrieval agent for storage. It never touches the
// vector index itself.
type Ingestion struct {
	parsers  *parser.Registry
	embedder embedding.Embedder
	chunkCfg chunker.Config
	broker   *protocol.Broker
	metrics  *metrics.Collector
	logger   *slog.Logger
	workers  int
}

// NewIngestion wires an ingestion agent and registers it on the broker.
func NewIngestion(parsers *parser.Registry, embedder embedding.Embedder, chunkCfg chunker.Config, broker *protocol.Broker, collector *metrics.Collector, logger *slog.Logger) (*Ingestion, error) {
	if err := chunkCfg.Validate(); err != nil {
		return nil, fmt.Errorf("chunker config: %w", err)
	}
	a := &Ingestion{
		parsers:  parsers,
		embedder: embedder,
		chunkCfg: chunkCfg,
		broker:   broker,
		metrics:  collector,
		logger:   logger.With("agent", protocol.AgentIngestion),
		workers:  DefaultIngestWorkers,
	}
	broker.Register(protocol.AgentIngestion, a.handle)
	return a, nil
}

func (a *Ingestion) handle(ctx context.Context, env protocol.Envelope) (protocol.Envelope, error) {
	switch env.Type {
	case protocol.TypeDocumentUpload:
		upload, ok := env.Payload.(UploadInput)
		if !ok {
			return protocol.Envelope{}, fmt.Errorf("unexpected payload %T for %s", env.Payload, env.Type)
		}
		report := a.IngestTraced(ctx, upload, env.TraceID)
		resp := protocol.NewWithTrace(protocol.AgentIngestion, env.Sender, protocol.TypeDocumentProcessed, report, env.TraceID)
		return resp, nil
	default:
		return protocol.Envelope{}, fmt.Errorf("unsupported envelope type %s", env.Type)
	}
}

// Ingest processes one document: parse, chunk, embed, then emit the
// batch to the retrieval agent. Failures are captured in the report,
// never returned as errors, so batch callers can continue.
func (a *Ingestion) Ingest(ctx context.Context, upload UploadInput) models.IngestionReport {
	return a.IngestTraced(ctx, upload, uuid.NewString())
}

// IngestTraced is Ingest continuing an existing trace.
func (a *Ingestion) IngestTraced(ctx context.Context, upload UploadInput, traceID string) models.IngestionReport {
	doc := models.Document{
		ID:         documentID(upload),
		Filename:   upload.Filename,
		SessionID:  upload.SessionID,
		UploadedAt: time.Now().UTC(),
	}
	report := models.IngestionReport{DocumentID: doc.ID, Filename: doc.Filename}

	kind, ok := models.KindFromFilename(upload.Filename)
	if !ok {
		return a.fail(report, fmt.Errorf("%w: %s", parser.ErrUnsupportedFormat, upload.Filename))
	}
	doc.Kind = kind

	start := time.Now()
	text, err := a.parsers.Extract(kind, upload.Data)
	if err != nil {
		a.metrics.RecordFailure(metrics.OpParse)
		return a.fail(report, err)
	}
	a.metrics.RecordTiming(metrics.OpParse, time.Since(start))

	start = time.Now()
	segments, err := chunker.Split(text, a.chunkCfg)
	if err != nil {
		a.metrics.RecordFailure(metrics.OpChunk)
		return a.fail(report, fmt.Errorf("chunk document: %w", err))
	}
	a.metrics.RecordTiming(metrics.OpChunk, time.Since(start))

	if len(segments) == 0 {
		return a.fail(report, fmt.Errorf("%w: document contains no text", parser.ErrParse))
	}

	chunks := make([]models.Chunk, len(segments))
	texts := make([]string, len(segments))
	for i, seg := range segments {
		chunks[i] = models.Chunk{
			ID:          fmt.Sprintf("%s:%d", doc.ID, seg.Seq),
			DocumentID:  doc.ID,
			Seq:         seg.Seq,
			Text:        seg.Text,
			StartOffset: seg.Start,
			EndOffset:   seg.End,
		}
		texts[i] = seg.Text
	}

	start = time.Now()
	vectors, err := a.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		a.metrics.RecordFailure(metrics.OpEmbed)
		return a.fail(report, err)
	}
	a.metrics.RecordTiming(metrics.OpEmbed, time.Since(start))

	embeddings := make([]models.Embedding, len(chunks))
	for i, chunk := range chunks {
		embeddings[i] = models.Embedding{
			ChunkID: chunk.ID,
			Vector:  vectors[i],
			Model:   a.embedder.Model(),
		}
	}

	batch := protocol.DocumentProcessed{
		Document:   doc,
		Chunks:     chunks,
		Embeddings: embeddings,
		Namespace:  SessionNamespace(upload.SessionID),
	}
	env := protocol.NewWithTrace(protocol.AgentIngestion, protocol.AgentRetrieval, protocol.TypeDocumentProcessed, batch, traceID)
	if _, err := a.broker.Send(ctx, env); err != nil {
		return a.fail(report, fmt.Errorf("store chunks: %w", err))
	}

	report.ChunkCount = len(chunks)
	a.logger.Info("document ingested",
		"document_id", doc.ID, "filename", doc.Filename, "kind", doc.Kind, "chunks", len(chunks))
	return report
}

// IngestBatch processes documents concurrently with a bounded worker
// pool. Reports come back in input order; one document failing never
// aborts its siblings.
func (a *Ingestion) IngestBatch(ctx context.Context, uploads []UploadInput) []models.IngestionReport {
	reports := make([]models.IngestionReport, len(uploads))

	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup
	for i, upload := range uploads {
		wg.Add(1)
		go func(i int, upload UploadInput) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			reports[i] = a.Ingest(ctx, upload)
		}(i, upload)
	}
	wg.Wait()
	return reports
}

func (a *Ingestion) fail(report models.IngestionReport, err error) models.IngestionReport {
	report.Failed = true
	report.Error = err.Error()

	level := slog.LevelWarn
	if errors.Is(err, embedding.ErrEmbedding) {
		level = slog.LevelError
	}
	a.logger.Log(context.Background(), level, "ingestion failed",
		"document_id", report.DocumentID, "filename", report.Filename, "error", err)
	return report
}

// SessionNamespace maps a session id onto its vector index namespace.
func SessionNamespace(sessionID string) string {
	return "session:" + sessionID
}

// documentID derives a stable id from session, filename, and content.
// Re-uploading identical content produces the same document and chunk
// ids, so re-ingestion overwrites instead of duplicating.
func documentID(upload UploadInput) string {
	h := sha256.New()
	h.Write([]byte(upload.SessionID))
	h.Write([]byte{0})
	h.Write([]byte(upload.Filename))
	h.Write([]byte{0})
	h.Write(upload.Data)
	return hex.EncodeToString(h.Sum(nil)[:16])
}
