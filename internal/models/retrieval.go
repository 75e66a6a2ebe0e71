package models

// ScoredChunk pairs a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult holds the ranked matches for one query. It is
// transient: produced for a single request and never persisted.
// Scores are monotonically non-increasing by rank.
type RetrievalResult struct {
	Query   string        `json:"query"`
	Matches []ScoredChunk `json:"matches"`
}

// Empty reports whether retrieval produced no usable context.
func (r RetrievalResult) Empty() bool {
	return len(r.Matches) == 0
}

// ChunkIDs returns the ids of all matched chunks in rank order.
func (r RetrievalResult) ChunkIDs() []string {
	ids := make([]string, 0, len(r.Matches))
	for _, m := range r.Matches {
		ids = append(ids, m.Chunk.ID)
	}
	return ids
}
