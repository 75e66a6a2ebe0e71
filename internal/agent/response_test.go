package agent

import (
	"context"
	"testing"

	"github.com/raglab/docchat/internal/metrics"
	"github.com/raglab/docchat/internal/models"
	"github.com/raglab/docchat/internal/protocol"
)

func retrievalFixture() models.RetrievalResult {
	return models.RetrievalResult{
		Query: "q",
		Matches: []models.ScoredChunk{
			{Chunk: models.Chunk{ID: "d1:0", DocumentID: "d1", Seq: 0, Text: "first passage"}, Score: 0.91},
			{Chunk: models.Chunk{ID: "d1:1", DocumentID: "d1", Seq: 1, Text: "second passage"}, Score: 0.72},
		},
	}
}

func newResponseAgent(t *testing.T, primary, fallback *scriptedProvider) *Response {
	t.Helper()
	broker := protocol.NewBroker()
	if fallback == nil {
		return NewResponse(primary, nil, DefaultResponseConfig(), broker, metrics.NewCollector(), testLogger())
	}
	return NewResponse(primary, fallback, DefaultResponseConfig(), broker, metrics.NewCollector(), testLogger())
}

func TestGenerateValidCitations(t *testing.T) {
	primary := &scriptedProvider{name: "p", answer: "Fact one [C1]. Fact two [C2]."}
	agent := newResponseAgent(t, primary, nil)

	answer, citations, provider, err := agent.Generate(context.Background(), "q", nil, retrievalFixture())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if provider != "p" {
		t.Errorf("Expected provider p, got %s", provider)
	}
	if len(citations) != 2 {
		t.Fatalf("Expected 2 citations, got %d", len(citations))
	}
	if citations[0].ChunkID != "d1:0" || citations[1].ChunkID != "d1:1" {
		t.Errorf("Citations map to wrong chunks: %+v", citations)
	}
	if citations[0].Score != 0.91 {
		t.Errorf("Citation should carry the retrieval score, got %f", citations[0].Score)
	}
	if answer != "Fact one . Fact two ." {
		t.Errorf("Markers should be stripped, got %q", answer)
	}
}

func TestGenerateDropsFabricatedCitations(t *testing.T) {
	// [C7] and [C0] reference chunks outside the retrieved set.
	primary := &scriptedProvider{name: "p", answer: "Real [C2]. Fabricated [C7] and [C0]."}
	agent := newResponseAgent(t, primary, nil)

	_, citations, _, err := agent.Generate(context.Background(), "q", nil, retrievalFixture())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(citations) != 1 {
		t.Fatalf("Expected only the valid citation, got %d", len(citations))
	}
	if citations[0].ChunkID != "d1:1" {
		t.Errorf("Expected citation for d1:1, got %s", citations[0].ChunkID)
	}
}

func TestGenerateDeduplicatesCitations(t *testing.T) {
	primary := &scriptedProvider{name: "p", answer: "Once [C1], twice [C1], thrice [C1]."}
	agent := newResponseAgent(t, primary, nil)

	_, citations, _, err := agent.Generate(context.Background(), "q", nil, retrievalFixture())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(citations) != 1 {
		t.Errorf("Repeated markers should yield one citation, got %d", len(citations))
	}
}

func TestGenerateStripsChunksUsedFooter(t *testing.T) {
	primary := &scriptedProvider{name: "p", answer: "Fact one [C1].\nChunks used: [C1] [C2]"}
	agent := newResponseAgent(t, primary, nil)

	answer, citations, _, err := agent.Generate(context.Background(), "q", nil, retrievalFixture())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if answer != "Fact one ." {
		t.Errorf("Footer should be stripped, got %q", answer)
	}
	// Footer tags count as citations too.
	if len(citations) != 2 {
		t.Fatalf("Expected 2 citations, got %d", len(citations))
	}
	if citations[1].ChunkID != "d1:1" {
		t.Errorf("Expected footer-only citation for d1:1, got %s", citations[1].ChunkID)
	}
}

func TestGenerateFallbackProviderName(t *testing.T) {
	primary := &scriptedProvider{name: "p", err: errProviderDown}
	fallback := &scriptedProvider{name: "f", answer: "from fallback"}
	agent := newResponseAgent(t, primary, fallback)

	answer, _, provider, err := agent.Generate(context.Background(), "q", nil, retrievalFixture())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if provider != "f" {
		t.Errorf("Expected fallback provider, got %s", provider)
	}
	if answer != "from fallback" {
		t.Errorf("Unexpected answer: %q", answer)
	}
}

func TestNotFound(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"not found in documents", true},
		{"Not found in documents.", true},
		{"  not found in documents  ", true},
		{"The revenue grew 12%", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := NotFound(tt.answer); got != tt.want {
			t.Errorf("NotFound(%q) = %v, want %v", tt.answer, got, tt.want)
		}
	}
}
