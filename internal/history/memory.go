package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/raglab/docchat/internal/models"
)

// Memory is an in-process ConversationStore. Suitable for tests and
// single-binary deployments without a database.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*models.ConversationSession
}

var _ ConversationStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*models.ConversationSession)}
}

func (m *Memory) Append(ctx context.Context, msg models.Message) error {
	if msg.SessionID == "" {
		return fmt.Errorf("append message: empty session id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[msg.SessionID]
	if !ok {
		sess = &models.ConversationSession{
			SessionID: msg.SessionID,
			CreatedAt: time.Now().UTC(),
		}
		m.sessions[msg.SessionID] = sess
	}
	sess.Messages = append(sess.Messages, msg)
	return nil
}

func (m *Memory) History(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return []models.Message{}, nil
	}

	msgs := sess.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *Memory) Session(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}

	cp := *sess
	cp.Messages = make([]models.Message, len(sess.Messages))
	copy(cp.Messages, sess.Messages)
	return &cp, nil
}

func (m *Memory) Sessions(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type entry struct {
		id      string
		created time.Time
	}
	entries := make([]entry, 0, len(m.sessions))
	for id, sess := range m.sessions {
		entries = append(entries, entry{id: id, created: sess.CreatedAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].created.Equal(entries[j].created) {
			return entries[i].id < entries[j].id
		}
		return entries[i].created.After(entries[j].created)
	})

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}
