// Package history persists per-session conversation transcripts.
package history

import (
	"context"
	"errors"

	"github.com/raglab/docchat/internal/models"
)

var (
	// ErrUnavailable wraps transient backend failures.
	ErrUnavailable = errors.New("history store unavailable")

	// ErrSessionNotFound is returned when a session id has no
	// recorded messages.
	ErrSessionNotFound = errors.New("session not found")
)

// DefaultHistoryLimit bounds how many recent messages a history read
// returns when the caller does not ask for a specific window.
const DefaultHistoryLimit = 50

// ConversationStore is an append-only record of conversation turns.
// Implementations must preserve insertion order per session.
type ConversationStore interface {
	// Append records one message at the end of its session.
	Append(ctx context.Context, msg models.Message) error

	// History returns the most recent messages of a session in
	// chronological order. limit <= 0 means DefaultHistoryLimit.
	// An unknown session yields an empty slice, not an error.
	History(ctx context.Context, sessionID string, limit int) ([]models.Message, error)

	// Session returns session metadata along with its full
	// transcript, or ErrSessionNotFound.
	Session(ctx context.Context, sessionID string) (*models.ConversationSession, error)

	// Sessions lists all known session ids, newest first.
	Sessions(ctx context.Context) ([]string, error)
}
