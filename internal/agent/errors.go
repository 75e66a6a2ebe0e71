// Package agent implements the four cooperating pipeline agents:
// ingestion, retrieval, chat, and response generation. Agents exchange
// envelopes through the protocol broker and hold their collaborators
// as injected handles.
package agent

import "errors"

var (
	// ErrRetrievalUnavailable indicates a transient vector index
	// failure. Retryable; queries degrade to ungrounded generation.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrGenerationFailed indicates every completion provider was
	// exhausted. Fatal to the query; nothing is persisted.
	ErrGenerationFailed = errors.New("generation failed")
)
