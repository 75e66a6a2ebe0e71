// Package index defines vector storage and nearest-neighbor search
// behind a narrow interface, with in-memory and SurrealDB backends.
package index

import (
	"context"
	"errors"
	"regexp"
)

// Sentinel errors for index operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnavailable indicates a transient backend failure. Callers
	// may retry with backoff.
	ErrUnavailable = errors.New("vector index unavailable")

	// ErrInvalidNamespace indicates a malformed namespace. Caller bug,
	// not retryable.
	ErrInvalidNamespace = errors.New("invalid namespace")

	// ErrDimensionMismatch indicates a vector whose length differs
	// from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Meta is the metadata stored with every vector. It must always
// resolve back to a retrievable chunk.
type Meta struct {
	ChunkID     string `json:"chunk_id"`
	DocumentID  string `json:"document_id"`
	Seq         int    `json:"seq"`
	Snippet     string `json:"snippet"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Model       string `json:"model"`
}

// Record is one index-resident vector. ID equals the chunk id, which
// is what makes re-ingestion overwrite rather than duplicate.
type Record struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"vector"`
	Meta   Meta      `json:"meta"`
}

// Scored pairs a record with its similarity to a query vector.
type Scored struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
}

// VectorIndex stores vectors in isolated namespaces and answers
// nearest-neighbor queries. All mutation of a namespace goes through
// one Retrieval Agent, which serializes writes per namespace.
type VectorIndex interface {
	// Upsert stores records keyed by id. Re-upserting an id
	// overwrites the previous record, never duplicates it.
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Query returns up to k records ranked by descending similarity
	// to vector, restricted to the namespace.
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]Scored, error)

	// DeleteDocument removes every record belonging to a document and
	// returns how many were removed. Keeps the no-orphans invariant
	// when a document is deleted.
	DeleteDocument(ctx context.Context, namespace, documentID string) (int, error)

	// Count returns the number of records in a namespace.
	Count(ctx context.Context, namespace string) (int, error)
}

// namespacePattern admits session- and document-scoped namespaces such
// as "session:3f2a" or "docs". Rejects empty names and characters that
// would leak into query syntax.
var namespacePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9:_-]{0,127}$`)

// ValidateNamespace checks a namespace against the allowed pattern.
func ValidateNamespace(namespace string) error {
	if !namespacePattern.MatchString(namespace) {
		return ErrInvalidNamespace
	}
	return nil
}
