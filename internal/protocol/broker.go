package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Handler processes one request envelope and returns the response
// envelope. Handlers run synchronously on the caller's goroutine, so
// per-session ordering follows from callers serializing their calls.
type Handler func(ctx context.Context, env Envelope) (Envelope, error)

// Broker routes envelopes between agents registered under their agent
// id. It also records every envelope it sees, so a workflow can be
// reconstructed by trace id. Safe for concurrent use across sessions.
type Broker struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	history  []Envelope
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{handlers: make(map[string]Handler)}
}

// Register installs the handler for an agent id. Registering the same
// id twice replaces the previous handler.
func (b *Broker) Register(agentID string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[agentID] = h
	slog.Debug("agent registered", "agent", agentID)
}

// Send dispatches a request envelope to its receiver and returns the
// response envelope. Both request and response are recorded.
func (b *Broker) Send(ctx context.Context, env Envelope) (Envelope, error) {
	b.mu.RLock()
	h, ok := b.handlers[env.Receiver]
	b.mu.RUnlock()

	b.record(env)

	if !ok {
		return Envelope{}, fmt.Errorf("no handler for receiver %q", env.Receiver)
	}

	slog.Debug("dispatching envelope",
		"type", env.Type, "sender", env.Sender, "receiver", env.Receiver, "trace_id", env.TraceID)

	resp, err := h(ctx, env)
	if err != nil {
		return Envelope{}, err
	}
	b.record(resp)
	return resp, nil
}

func (b *Broker) record(env Envelope) {
	b.mu.Lock()
	b.history = append(b.history, env)
	b.mu.Unlock()
}

// History returns recorded envelopes, optionally filtered by trace id.
// Pass an empty trace id for the full history.
func (b *Broker) History(traceID string) []Envelope {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if traceID == "" {
		out := make([]Envelope, len(b.history))
		copy(out, b.history)
		return out
	}
	var out []Envelope
	for _, env := range b.history {
		if env.TraceID == traceID {
			out = append(out, env)
		}
	}
	return out
}
