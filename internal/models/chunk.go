package models

import "unicode/utf8"

// Chunk is a bounded text segment extracted from a document.
// It is the unit of embedding and citation. Seq is stable within a
// document and is what citations display.
type Chunk struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Seq         int    `json:"seq"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// Embedding is the vector representation of one chunk under one
// embedding model. Regenerated whenever the model changes.
type Embedding struct {
	ChunkID string    `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
	Model   string    `json:"model"`
}

// SnippetLen bounds the text stored alongside vectors for citation display.
const SnippetLen = 200

// Snippet returns a display-sized prefix of the chunk text, cut on a
// rune boundary so multi-byte text stays valid UTF-8.
func (c Chunk) Snippet() string {
	if len(c.Text) <= SnippetLen {
		return c.Text
	}
	end := SnippetLen
	for end > 0 && !utf8.RuneStart(c.Text[end]) {
		end--
	}
	return c.Text[:end]
}
