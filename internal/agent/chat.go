package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raglab/docchat/internal/history"
	"github.com/raglab/docchat/internal/models"
	"github.com/raglab/docchat/internal/protocol"
)

// QueryState tracks a query through its lifecycle. FAILED is reachable
// from every state.
type QueryState string

const (
	StateReceived   QueryState = "RECEIVED"
	StateRetrieving QueryState = "RETRIEVING"
	StateGenerating QueryState = "GENERATING"
	StatePersisted  QueryState = "PERSISTED"
	StateReturned   QueryState = "RETURNED"
	StateFailed     QueryState = "FAILED"
)

// ChatConfig tunes the per-query workflow.
type ChatConfig struct {
	TopK         int
	HistoryLimit int
}

func DefaultChatConfig() ChatConfig {
	return ChatConfig{TopK: DefaultTopK, HistoryLimit: history.DefaultHistoryLimit}
}

// Chat owns conversation store access and drives the per-query
// workflow: load history, retrieve context, generate, persist, return.
// Retrieval failure degrades the query to ungrounded generation;
// generation failure aborts it with nothing persisted.
type Chat struct {
	broker *protocol.Broker
	store  history.ConversationStore
	cfg    ChatConfig
	logger *slog.Logger
}

// NewChat wires a chat agent and registers it on the broker.
func NewChat(broker *protocol.Broker, store history.ConversationStore, cfg ChatConfig, logger *slog.Logger) *Chat {
	a := &Chat{
		broker: broker,
		store:  store,
		cfg:    cfg,
		logger: logger.With("agent", protocol.AgentChat),
	}
	broker.Register(protocol.AgentChat, a.handle)
	return a
}

func (a *Chat) handle(ctx context.Context, env protocol.Envelope) (protocol.Envelope, error) {
	switch env.Type {
	case protocol.TypeChatHistoryRequest:
		req, ok := env.Payload.(protocol.ChatHistoryRequest)
		if !ok {
			return protocol.Envelope{}, fmt.Errorf("unexpected payload %T for %s", env.Payload, env.Type)
		}
		msgs, err := a.History(ctx, req.SessionID, req.Limit)
		if err != nil {
			return protocol.Envelope{}, err
		}
		resp := protocol.NewWithTrace(protocol.AgentChat, env.Sender, protocol.TypeChatHistoryResponse,
			protocol.ChatHistoryResponse{SessionID: req.SessionID, History: msgs}, env.TraceID)
		return resp, nil
	default:
		return protocol.Envelope{}, fmt.Errorf("unsupported envelope type %s", env.Type)
	}
}

// HandleQuery runs the full query workflow for one session turn.
func (a *Chat) HandleQuery(ctx context.Context, sessionID, query string) (models.AnswerEnvelope, error) {
	state := StateReceived
	log := a.logger.With("session_id", sessionID)
	log.Info("query received")

	msgs, err := a.store.History(ctx, sessionID, a.cfg.HistoryLimit)
	if err != nil {
		log.Error("history load failed", "state", string(state), "error", err)
		return models.AnswerEnvelope{}, fmt.Errorf("load history: %w", err)
	}

	state = StateRetrieving
	grounded := true
	result := models.RetrievalResult{Query: query}

	req := protocol.New(protocol.AgentChat, protocol.AgentRetrieval, protocol.TypeContextRequest,
		protocol.ContextRequest{
			Query:     query,
			TopK:      a.cfg.TopK,
			Namespace: SessionNamespace(sessionID),
		})
	traceID := req.TraceID

	resp, err := a.broker.Send(ctx, req)
	if err != nil {
		// Degraded but answerable: generation proceeds with empty
		// context instead of aborting the query.
		log.Warn("retrieval failed, degrading to ungrounded generation", "error", err)
		grounded = false
	} else if ctxResp, ok := resp.Payload.(protocol.ContextResponse); ok {
		result = ctxResp.Result
	}
	if result.Empty() {
		grounded = false
	}

	state = StateGenerating
	llmReq := protocol.NewWithTrace(protocol.AgentChat, protocol.AgentLLM, protocol.TypeLLMRequest,
		protocol.LLMRequest{Query: query, History: msgs, Result: result}, traceID)
	llmEnv, err := a.broker.Send(ctx, llmReq)
	if err != nil {
		state = StateFailed
		log.Error("generation failed", "state", string(state), "error", err)
		return models.AnswerEnvelope{}, err
	}
	llmResp, ok := llmEnv.Payload.(protocol.LLMResponse)
	if !ok {
		state = StateFailed
		return models.AnswerEnvelope{}, fmt.Errorf("%w: unexpected payload %T", ErrGenerationFailed, llmEnv.Payload)
	}

	if NotFound(llmResp.Answer) {
		grounded = false
	}

	// User message first, assistant second: history order matches
	// arrival order.
	state = StatePersisted
	now := time.Now().UTC()
	userMsg := models.Message{SessionID: sessionID, Role: models.RoleUser, Text: query, Timestamp: now}
	if err := a.store.Append(ctx, userMsg); err != nil {
		state = StateFailed
		return models.AnswerEnvelope{}, fmt.Errorf("persist user message: %w", err)
	}
	assistantMsg := models.Message{
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Text:      llmResp.Answer,
		Timestamp: now.Add(time.Millisecond),
		Citations: llmResp.Citations,
	}
	if err := a.store.Append(ctx, assistantMsg); err != nil {
		state = StateFailed
		return models.AnswerEnvelope{}, fmt.Errorf("persist assistant message: %w", err)
	}

	state = StateReturned
	log.Info("query answered",
		"state", string(state), "grounded", grounded, "citations", len(llmResp.Citations), "provider", llmResp.Provider)

	citations := llmResp.Citations
	if citations == nil {
		citations = []models.Citation{}
	}
	return models.AnswerEnvelope{
		Answer:    llmResp.Answer,
		Citations: citations,
		Grounded:  grounded,
	}, nil
}

// History returns the most recent turns of a session, oldest first.
func (a *Chat) History(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	return a.store.History(ctx, sessionID, limit)
}

// Sessions lists known conversation sessions, newest first.
func (a *Chat) Sessions(ctx context.Context) ([]string, error) {
	return a.store.Sessions(ctx)
}
