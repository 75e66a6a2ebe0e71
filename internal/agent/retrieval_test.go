package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/raglab/docchat/internal/index"
	"github.com/raglab/docchat/internal/models"
	"github.com/raglab/docchat/internal/protocol"
)

func storeBatch(t *testing.T, p *pipeline, namespace string, embeddings []models.Embedding) {
	t.Helper()

	chunks := make([]models.Chunk, len(embeddings))
	for i, emb := range embeddings {
		chunks[i] = models.Chunk{
			ID:         emb.ChunkID,
			DocumentID: "doc-1",
			Seq:        i,
			Text:       "chunk " + emb.ChunkID,
		}
	}
	batch := protocol.DocumentProcessed{
		Document:   models.Document{ID: "doc-1", Filename: "doc.txt"},
		Chunks:     chunks,
		Embeddings: embeddings,
		Namespace:  namespace,
	}
	if err := p.retrieval.Store(context.Background(), batch); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
}

func TestSearchSimilarityFloor(t *testing.T) {
	p := newPipeline(t, pipelineOpts{})
	ns := SessionNamespace("floor")

	// Cosine against the query vector [1,0,0,0]: first component is
	// the score directly for unit vectors.
	storeBatch(t, p, ns, []models.Embedding{
		{ChunkID: "doc-1:0", Vector: []float32{1, 0, 0, 0}, Model: "fake-embed-v1"},
		{ChunkID: "doc-1:1", Vector: []float32{0.6, 0.8, 0, 0}, Model: "fake-embed-v1"},
		{ChunkID: "doc-1:2", Vector: []float32{0.2, 0.9797959, 0, 0}, Model: "fake-embed-v1"},
	})

	result, err := p.retrieval.Search(context.Background(), "anything", 10, ns)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Matches) != 2 {
		t.Fatalf("expected 2 matches above the floor, got %d", len(result.Matches))
	}
	if result.Matches[0].Chunk.ID != "doc-1:0" || result.Matches[1].Chunk.ID != "doc-1:1" {
		t.Errorf("unexpected ranking: %q, %q", result.Matches[0].Chunk.ID, result.Matches[1].Chunk.ID)
	}
	for _, m := range result.Matches {
		if m.Score < DefaultSimilarityFloor {
			t.Errorf("match %s below floor: %f", m.Chunk.ID, m.Score)
		}
	}
}

func TestSearchSkipsForeignModelRecords(t *testing.T) {
	p := newPipeline(t, pipelineOpts{})
	ns := SessionNamespace("models")

	storeBatch(t, p, ns, []models.Embedding{
		{ChunkID: "doc-1:0", Vector: []float32{1, 0, 0, 0}, Model: "fake-embed-v1"},
		{ChunkID: "doc-1:1", Vector: []float32{0.99, 0.14, 0, 0}, Model: "other-embed-v2"},
	})

	result, err := p.retrieval.Search(context.Background(), "anything", 10, ns)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(result.Matches))
	}
	if result.Matches[0].Chunk.ID != "doc-1:0" {
		t.Errorf("expected the same-model record, got %q", result.Matches[0].Chunk.ID)
	}
}

func TestSearchInvalidNamespace(t *testing.T) {
	p := newPipeline(t, pipelineOpts{})

	_, err := p.retrieval.Search(context.Background(), "anything", 10, "has space")
	if !errors.Is(err, index.ErrInvalidNamespace) {
		t.Fatalf("expected ErrInvalidNamespace, got %v", err)
	}
}

func TestSearchUnavailableIndex(t *testing.T) {
	p := newPipeline(t, pipelineOpts{idx: downIndex{}})

	_, err := p.retrieval.Search(context.Background(), "anything", 10, SessionNamespace("down"))
	if !errors.Is(err, ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
}

func TestStoreRejectsMismatchedBatch(t *testing.T) {
	p := newPipeline(t, pipelineOpts{})

	batch := protocol.DocumentProcessed{
		Document:  models.Document{ID: "doc-1", Filename: "doc.txt"},
		Chunks:    []models.Chunk{{ID: "doc-1:0", DocumentID: "doc-1"}},
		Namespace: SessionNamespace("mismatch"),
	}
	if err := p.retrieval.Store(context.Background(), batch); err == nil {
		t.Fatal("expected error for chunk/embedding count mismatch")
	}

	batch.Embeddings = []models.Embedding{
		{ChunkID: "doc-1:9", Vector: []float32{1, 0, 0, 0}, Model: "fake-embed-v1"},
	}
	if err := p.retrieval.Store(context.Background(), batch); err == nil {
		t.Fatal("expected error for embedding/chunk id mismatch")
	}
}
