package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/raglab/docchat/internal/llm"
	"github.com/raglab/docchat/internal/metrics"
	"github.com/raglab/docchat/internal/models"
	"github.com/raglab/docchat/internal/protocol"
)

// DefaultProviderTimeout bounds one provider call before falling back.
const DefaultProviderTimeout = 30 * time.Second

var (
	citationMarker = regexp.MustCompile(`\[C(\d+)\]`)
	chunksFooter   = regexp.MustCompile(`(?im)^\s*chunks used:.*$`)
)

// ResponseConfig tunes answer generation.
type ResponseConfig struct {
	ProviderTimeout time.Duration
	PromptBudget    int
}

func DefaultResponseConfig() ResponseConfig {
	return ResponseConfig{
		ProviderTimeout: DefaultProviderTimeout,
		PromptBudget:    llm.DefaultPromptBudget,
	}
}

// Response generates grounded answers: it builds the prompt, calls
// the primary provider with a per-call timeout, falls back to the
// secondary on error, and validates citation markers against the
// chunks actually supplied. Which provider answered is opaque to
// callers.
type Response struct {
	primary  llm.Provider
	fallback llm.Provider
	cfg      ResponseConfig
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewResponse wires a response agent and registers it on the broker.
// fallback may be nil when only one provider is configured.
func NewResponse(primary, fallback llm.Provider, cfg ResponseConfig, broker *protocol.Broker, collector *metrics.Collector, logger *slog.Logger) *Response {
	a := &Response{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		metrics:  collector,
		logger:   logger.With("agent", protocol.AgentLLM),
	}
	broker.Register(protocol.AgentLLM, a.handle)
	return a
}

func (a *Response) handle(ctx context.Context, env protocol.Envelope) (protocol.Envelope, error) {
	req, ok := env.Payload.(protocol.LLMRequest)
	if !ok {
		return protocol.Envelope{}, fmt.Errorf("unexpected payload %T for %s", env.Payload, env.Type)
	}

	answer, citations, provider, err := a.Generate(ctx, req.Query, req.History, req.Result)
	if err != nil {
		return protocol.Envelope{}, err
	}

	resp := protocol.NewWithTrace(protocol.AgentLLM, env.Sender, protocol.TypeLLMResponse,
		protocol.LLMResponse{Answer: answer, Citations: citations, Provider: provider}, env.TraceID)
	return resp, nil
}

// Generate produces an answer and its validated citations from the
// retrieved context and conversation history.
func (a *Response) Generate(ctx context.Context, query string, history []models.Message, result models.RetrievalResult) (string, []models.Citation, string, error) {
	prompt := llm.BuildPrompt(llm.PromptInput{
		Query:   query,
		History: history,
		Chunks:  result.Matches,
		Budget:  a.cfg.PromptBudget,
	})

	start := time.Now()
	raw, provider, err := a.complete(ctx, prompt)
	if err != nil {
		a.metrics.RecordFailure(metrics.OpGenerate)
		return "", nil, "", err
	}
	a.metrics.RecordTiming(metrics.OpGenerate, time.Since(start))

	answer, citations := a.extractCitations(raw, result)
	return answer, citations, provider, nil
}

// complete tries the primary provider under a timeout, then the
// fallback with the same prompt.
func (a *Response) complete(ctx context.Context, prompt string) (string, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.ProviderTimeout)
	raw, err := a.primary.Complete(callCtx, llm.SystemPrompt, prompt)
	cancel()
	if err == nil {
		return raw, a.primary.Name(), nil
	}

	if a.fallback == nil {
		return "", "", fmt.Errorf("%w: %s: %v", ErrGenerationFailed, a.primary.Name(), err)
	}

	a.logger.Warn("primary provider failed, falling back",
		"primary", a.primary.Name(), "fallback", a.fallback.Name(), "error", err)

	callCtx, cancel = context.WithTimeout(ctx, a.cfg.ProviderTimeout)
	defer cancel()
	raw, ferr := a.fallback.Complete(callCtx, llm.SystemPrompt, prompt)
	if ferr != nil {
		return "", "", fmt.Errorf("%w: primary %s: %v; fallback %s: %v",
			ErrGenerationFailed, a.primary.Name(), err, a.fallback.Name(), ferr)
	}
	return raw, a.fallback.Name(), nil
}

// extractCitations resolves [CN] markers against the supplied chunks,
// whether inline or on the "Chunks used:" footer line. Markers
// referencing chunks outside the retrieved set are dropped, never
// passed through to the user. The returned answer has the footer and
// all markers stripped.
func (a *Response) extractCitations(raw string, result models.RetrievalResult) (string, []models.Citation) {
	var citations []models.Citation
	seen := make(map[string]bool)

	for _, match := range citationMarker.FindAllStringSubmatch(raw, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 || n > len(result.Matches) {
			a.logger.Warn("dropping fabricated citation marker", "marker", match[0])
			continue
		}
		scored := result.Matches[n-1]
		if seen[scored.Chunk.ID] {
			continue
		}
		seen[scored.Chunk.ID] = true
		citations = append(citations, models.Citation{
			DocumentID: scored.Chunk.DocumentID,
			ChunkID:    scored.Chunk.ID,
			Score:      scored.Score,
			Snippet:    scored.Chunk.Snippet(),
		})
	}

	answer := chunksFooter.ReplaceAllString(raw, "")
	answer = citationMarker.ReplaceAllString(answer, "")
	answer = strings.Join(strings.Fields(answer), " ")
	return answer, citations
}

// NotFound reports whether an answer is the fixed insufficient-context
// reply.
func NotFound(answer string) bool {
	return strings.EqualFold(strings.TrimSuffix(strings.TrimSpace(answer), "."), llm.NotFoundAnswer)
}
