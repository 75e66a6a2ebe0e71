package models

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation session. Messages are
// append-only: once stored they are never edited or reordered.
type Message struct {
	SessionID string     `json:"session_id" bson:"session_id"`
	Role      Role       `json:"role" bson:"role"`
	Text      string     `json:"text" bson:"text"`
	Timestamp time.Time  `json:"timestamp" bson:"timestamp"`
	Citations []Citation `json:"citations,omitempty" bson:"citations,omitempty"`
}

// Citation links an assistant message to the retrieved evidence that
// justified it.
type Citation struct {
	DocumentID string  `json:"document_id" bson:"document_id"`
	ChunkID    string  `json:"chunk_id" bson:"chunk_id"`
	Score      float64 `json:"score" bson:"score"`
	Snippet    string  `json:"snippet" bson:"snippet"`
}

// ConversationSession groups the ordered messages of one conversation
// thread. Created on first interaction with a session id.
type ConversationSession struct {
	SessionID string    `json:"session_id" bson:"session_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Messages  []Message `json:"messages" bson:"messages"`
}

// AnswerEnvelope is what a query returns to the caller.
type AnswerEnvelope struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Grounded  bool       `json:"grounded"`
}
