package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/raglab/docchat/internal/chunker"
	"github.com/raglab/docchat/internal/models"
)

func ingestDoc(t *testing.T, p *pipeline, session, filename, text string) models.IngestionReport {
	t.Helper()
	report := p.ingestion.Ingest(context.Background(), UploadInput{
		Filename:  filename,
		Data:      []byte(text),
		SessionID: session,
	})
	if report.Failed {
		t.Fatalf("Ingest %s failed: %s", filename, report.Error)
	}
	return report
}

func TestHandleQueryGrounded(t *testing.T) {
	ctx := context.Background()
	primary := &scriptedProvider{name: "primary", answer: "Revenue grew 12% [C1]."}
	p := newPipeline(t, pipelineOpts{
		chunkCfg: chunker.Config{Size: 100, Overlap: 20},
		primary:  primary,
	})

	report := ingestDoc(t, p, "s1", "report.txt", "Revenue grew 12 percent in the third quarter.")

	env, err := p.chat.HandleQuery(ctx, "s1", "how did revenue do?")
	if err != nil {
		t.Fatalf("HandleQuery failed: %v", err)
	}
	if !env.Grounded {
		t.Error("Answer backed by retrieved context should be grounded")
	}
	if len(env.Citations) != 1 {
		t.Fatalf("Expected 1 citation, got %d", len(env.Citations))
	}
	if env.Citations[0].DocumentID != report.DocumentID {
		t.Errorf("Citation references wrong document: %s", env.Citations[0].DocumentID)
	}
	if !strings.Contains(env.Answer, "Revenue grew 12%") {
		t.Errorf("Unexpected answer: %q", env.Answer)
	}
	if strings.Contains(env.Answer, "[C1]") {
		t.Error("Markers should be stripped from the returned answer")
	}

	// History holds user then assistant, in that order.
	msgs, err := p.chat.History(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 persisted messages, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
		t.Errorf("Expected user then assistant, got %s then %s", msgs[0].Role, msgs[1].Role)
	}
	if len(msgs[1].Citations) != 1 {
		t.Errorf("Assistant message should carry its citations, got %d", len(msgs[1].Citations))
	}
}

func TestHandleQueryEmptyIndex(t *testing.T) {
	ctx := context.Background()
	primary := &scriptedProvider{name: "primary", answer: "not found in documents"}
	p := newPipeline(t, pipelineOpts{primary: primary})

	env, err := p.chat.HandleQuery(ctx, "s1", "what is the revenue?")
	if err != nil {
		t.Fatalf("HandleQuery failed: %v", err)
	}
	if env.Grounded {
		t.Error("Query against an empty index must not be grounded")
	}
	if len(env.Citations) != 0 {
		t.Errorf("Expected no citations, got %d", len(env.Citations))
	}
	if !strings.Contains(strings.ToLower(env.Answer), "not found in documents") {
		t.Errorf("Answer should indicate nothing was found, got %q", env.Answer)
	}
}

func TestHandleQueryRetrievalFailureDegrades(t *testing.T) {
	ctx := context.Background()
	primary := &scriptedProvider{name: "primary", answer: "not found in documents"}
	p := newPipeline(t, pipelineOpts{
		idx:     downIndex{},
		primary: primary,
	})

	env, err := p.chat.HandleQuery(ctx, "s1", "anything?")
	if err != nil {
		t.Fatalf("Retrieval failure should degrade, not abort: %v", err)
	}
	if env.Grounded {
		t.Error("Degraded query must be marked ungrounded")
	}

	// The degraded turn is still part of the conversation.
	msgs, err := p.chat.History(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("Expected degraded turn persisted, got %d messages", len(msgs))
	}
}

func TestHandleQueryGenerationFailure(t *testing.T) {
	ctx := context.Background()
	primary := &scriptedProvider{name: "primary", err: errProviderDown}
	fallback := &scriptedProvider{name: "fallback", err: errProviderDown}
	p := newPipeline(t, pipelineOpts{primary: primary, fallback: fallback})

	ingestDoc(t, p, "s1", "doc.txt", "Some content worth retrieving for this query.")

	_, err := p.chat.HandleQuery(ctx, "s1", "tell me something")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("Expected ErrGenerationFailed, got %v", err)
	}

	// No half-written turn: failed generation persists nothing.
	msgs, herr := p.chat.History(ctx, "s1", 0)
	if herr != nil {
		t.Fatalf("History failed: %v", herr)
	}
	if len(msgs) != 0 {
		t.Errorf("Failed query must not persist messages, got %d", len(msgs))
	}
}

func TestHandleQueryProviderFallback(t *testing.T) {
	ctx := context.Background()
	primary := &scriptedProvider{name: "primary", err: errProviderDown}
	fallback := &scriptedProvider{name: "fallback", answer: "Quarterly revenue rose [C1]."}
	p := newPipeline(t, pipelineOpts{
		chunkCfg: chunker.Config{Size: 100, Overlap: 20},
		primary:  primary,
		fallback: fallback,
	})

	ingestDoc(t, p, "s1", "report.txt", "Quarterly revenue rose across all regions.")

	env, err := p.chat.HandleQuery(ctx, "s1", "how did revenue do?")
	if err != nil {
		t.Fatalf("Fallback should hide the primary failure: %v", err)
	}
	if !env.Grounded {
		t.Error("Fallback-generated answer with context should stay grounded")
	}
	if primary.calls == 0 || fallback.calls == 0 {
		t.Errorf("Both providers should have been tried: primary=%d fallback=%d", primary.calls, fallback.calls)
	}
	if !strings.Contains(env.Answer, "Quarterly revenue rose") {
		t.Errorf("Answer should come from the fallback, got %q", env.Answer)
	}
}

func TestSessionsDoNotLeakAcrossNamespaces(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, pipelineOpts{chunkCfg: chunker.Config{Size: 100, Overlap: 20}})

	reportA := ingestDoc(t, p, "session-a", "a.txt", "Alpha content only for session A.")
	ingestDoc(t, p, "session-b", "b.txt", "Beta content only for session B.")

	result, err := p.retrieval.Search(ctx, "content", 10, SessionNamespace("session-a"))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Empty() {
		t.Fatal("Session A should find its own content")
	}
	for _, m := range result.Matches {
		if m.Chunk.DocumentID != reportA.DocumentID {
			t.Errorf("Session A query returned foreign chunk %s", m.Chunk.ID)
		}
	}
}

func TestHistoryAppendOnly(t *testing.T) {
	ctx := context.Background()
	primary := &scriptedProvider{name: "primary", answer: "fine"}
	p := newPipeline(t, pipelineOpts{primary: primary})

	if _, err := p.chat.HandleQuery(ctx, "s1", "first question"); err != nil {
		t.Fatalf("HandleQuery failed: %v", err)
	}
	before, err := p.chat.History(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}

	if _, err := p.chat.HandleQuery(ctx, "s1", "second question"); err != nil {
		t.Fatalf("HandleQuery failed: %v", err)
	}
	after, err := p.chat.History(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}

	if len(after) != len(before)+2 {
		t.Fatalf("Expected %d messages, got %d", len(before)+2, len(after))
	}
	for i := range before {
		if after[i].Text != before[i].Text || after[i].Role != before[i].Role {
			t.Errorf("Message %d changed after append: %+v vs %+v", i, before[i], after[i])
		}
	}
}
