// Package models defines the core data types shared by all agents.
package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Kind identifies a supported document format.
// The set is closed: every kind has exactly one parser.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindDOCX     Kind = "docx"
	KindPPTX     Kind = "pptx"
	KindCSV      Kind = "csv"
	KindXLSX     Kind = "xlsx"
	KindTXT      Kind = "txt"
	KindMarkdown Kind = "md"
)

// SupportedKinds lists every document kind the ingestion pipeline accepts.
func SupportedKinds() []Kind {
	return []Kind{KindPDF, KindDOCX, KindPPTX, KindCSV, KindXLSX, KindTXT, KindMarkdown}
}

// KindFromFilename derives the document kind from a file extension.
// Returns false if the extension maps to no supported kind.
func KindFromFilename(filename string) (Kind, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "pdf":
		return KindPDF, true
	case "docx":
		return KindDOCX, true
	case "pptx":
		return KindPPTX, true
	case "csv":
		return KindCSV, true
	case "xlsx":
		return KindXLSX, true
	case "txt", "text", "log":
		return KindTXT, true
	case "md", "markdown":
		return KindMarkdown, true
	}
	return "", false
}

// Document is the immutable record created for each upload.
// It is never mutated after creation; removal is explicit and cascades
// to the document's chunks and vectors.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Kind       Kind      `json:"kind"`
	SessionID  string    `json:"session_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// IngestionReport summarizes the outcome of ingesting one document.
// Per-document failures are reported here and never abort sibling
// documents in the same batch.
type IngestionReport struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	Failed     bool   `json:"failed"`
	Error      string `json:"error,omitempty"`
}

func (r IngestionReport) String() string {
	if r.Failed {
		return fmt.Sprintf("%s: failed: %s", r.Filename, r.Error)
	}
	return fmt.Sprintf("%s: %d chunks", r.Filename, r.ChunkCount)
}
