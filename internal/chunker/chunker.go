// Package chunker splits extracted document text into overlapping,
// size-bounded segments. Splitting is deterministic given (text, size,
// overlap): re-ingesting identical content always reproduces the same
// boundaries, which is what makes re-ingestion idempotent.
package chunker

import (
	"fmt"
	"strings"
)

// Config defines chunking parameters.
type Config struct {
	// Size is the maximum chunk length in characters.
	Size int
	// Overlap is the number of characters shared between adjacent
	// chunks. Overlap preserves semantic continuity across chunk
	// boundaries for retrieval.
	Overlap int
}

// DefaultConfig returns the standard chunking parameters.
func DefaultConfig() Config {
	return Config{Size: 1500, Overlap: 200}
}

// Validate checks that the parameters describe a usable splitter.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.Overlap, c.Size)
	}
	return nil
}

// Segment is one chunk of the input text with its position. Start and
// End are character offsets into the original text; Text is the
// whitespace-trimmed content of that range.
type Segment struct {
	Seq   int
	Text  string
	Start int
	End   int
}

// boundary reports whether r ends a sentence or line.
func boundary(r rune) bool {
	return r == '\n' || r == '.' || r == '!' || r == '?'
}

// Split divides text into overlapping segments. A segment prefers to
// end just after a sentence or line boundary found within the overlap
// window; otherwise it ends at the size limit. Whitespace-only
// segments are dropped without consuming a sequence number gap.
func Split(text string, cfg Config) ([]Segment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	var segments []Segment
	start := 0

	for start < len(runes) {
		end := start + cfg.Size
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Look back through the overlap window for a boundary so
			// chunks end on sentence or line edges when possible.
			window := cfg.Overlap
			if window > end-start-1 {
				window = end - start - 1
			}
			for i := 0; i < window; i++ {
				if boundary(runes[end-1-i]) {
					end -= i
					break
				}
			}
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			segments = append(segments, Segment{
				Seq:   len(segments),
				Text:  content,
				Start: start,
				End:   end,
			})
		}

		if end >= len(runes) {
			break
		}
		// Boundary snapping can pull end back by almost the whole
		// overlap; the next window must still advance.
		next := end - cfg.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return segments, nil
}
