// Package protocol defines the structured envelope all agents use to
// exchange requests and results, and the in-process broker that routes
// them. Wrapping every cross-agent call in an envelope keeps payload
// schemas versionable independent of transport.
package protocol

import (
	"time"

	"github.com/google/uuid"

	"github.com/raglab/docchat/internal/models"
)

// Type labels the payload schema carried by an envelope.
type Type string

const (
	TypeDocumentUpload      Type = "DOCUMENT_UPLOAD"
	TypeDocumentProcessed   Type = "DOCUMENT_PROCESSED"
	TypeQuery               Type = "QUERY"
	TypeContextRequest      Type = "CONTEXT_REQUEST"
	TypeContextResponse     Type = "CONTEXT_RESPONSE"
	TypeLLMRequest          Type = "LLM_REQUEST"
	TypeLLMResponse         Type = "LLM_RESPONSE"
	TypeChatHistoryRequest  Type = "CHAT_HISTORY_REQUEST"
	TypeChatHistoryResponse Type = "CHAT_HISTORY_RESPONSE"
	TypeError               Type = "ERROR"
)

// Agent identifiers used as envelope sender/receiver addresses.
const (
	AgentIngestion = "IngestionAgent"
	AgentRetrieval = "RetrievalAgent"
	AgentChat      = "ChatAgent"
	AgentLLM       = "LLMResponseAgent"
)

// Envelope is the protocol unit for all inter-agent communication.
// TraceID ties together every envelope produced while serving one
// user action.
type Envelope struct {
	Type      Type      `json:"type"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	TraceID   string    `json:"trace_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New builds an envelope with a fresh trace id.
func New(sender, receiver string, typ Type, payload any) Envelope {
	return NewWithTrace(sender, receiver, typ, payload, uuid.NewString())
}

// NewWithTrace builds an envelope continuing an existing trace.
func NewWithTrace(sender, receiver string, typ Type, payload any, traceID string) Envelope {
	return Envelope{
		Type:      typ,
		Sender:    sender,
		Receiver:  receiver,
		TraceID:   traceID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// DocumentProcessed carries a chunk+vector batch from the Ingestion
// Agent to the Retrieval Agent for storage.
type DocumentProcessed struct {
	Document   models.Document    `json:"document"`
	Chunks     []models.Chunk     `json:"chunks"`
	Embeddings []models.Embedding `json:"embeddings"`
	Namespace  string             `json:"namespace"`
}

// ContextRequest asks the Retrieval Agent for top-k context.
type ContextRequest struct {
	Query     string `json:"query"`
	TopK      int    `json:"top_k"`
	Namespace string `json:"namespace"`
}

// ContextResponse returns ranked context to the requester.
type ContextResponse struct {
	Result models.RetrievalResult `json:"result"`
}

// LLMRequest asks the LLM Response Agent for a grounded answer.
type LLMRequest struct {
	Query   string                 `json:"query"`
	History []models.Message       `json:"history"`
	Result  models.RetrievalResult `json:"result"`
}

// LLMResponse carries the generated answer and validated citations.
type LLMResponse struct {
	Answer    string            `json:"answer"`
	Citations []models.Citation `json:"citations"`
	Provider  string            `json:"provider"`
}

// ChatHistoryRequest asks for the most recent turns of a session.
type ChatHistoryRequest struct {
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit"`
}

// ChatHistoryResponse returns session history in chronological order.
type ChatHistoryResponse struct {
	SessionID string           `json:"session_id"`
	History   []models.Message `json:"history"`
}

// ErrorPayload reports a failed request back to the sender.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
