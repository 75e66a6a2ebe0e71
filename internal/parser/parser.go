// Package parser extracts plain text from uploaded documents. Each
// supported kind has its own parser; dispatch is over the closed kind
// set, never over runtime type inspection.
package parser

import (
	"errors"
	"fmt"

	"github.com/raglab/docchat/internal/models"
)

// Sentinel errors for document parsing.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnsupportedFormat indicates the declared document kind has no
	// registered parser.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrParse indicates the document content is corrupt or unreadable.
	// Per-document: callers ingesting a batch continue with siblings.
	ErrParse = errors.New("document parse failed")
)

// Parser extracts text from one document format.
type Parser interface {
	// Parse converts raw document bytes to plain text.
	Parse(data []byte) (string, error)
}

// Registry holds the parser for each supported kind.
type Registry struct {
	parsers map[models.Kind]Parser
}

// NewRegistry returns a registry covering every supported kind.
func NewRegistry() *Registry {
	return &Registry{parsers: map[models.Kind]Parser{
		models.KindPDF:      &PDFParser{},
		models.KindDOCX:     &DOCXParser{},
		models.KindPPTX:     &PPTXParser{},
		models.KindCSV:      &CSVParser{},
		models.KindXLSX:     &XLSXParser{},
		models.KindTXT:      &TextParser{},
		models.KindMarkdown: &MarkdownParser{},
	}}
}

// Extract parses data according to its declared kind. Unknown kinds
// fail with ErrUnsupportedFormat; unreadable content with ErrParse.
func (r *Registry) Extract(kind models.Kind, data []byte) (string, error) {
	p, ok := r.parsers[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, kind)
	}
	text, err := p.Parse(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrParse, kind, err)
	}
	return text, nil
}
