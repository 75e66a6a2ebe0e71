package models

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSnippetShortTextUnchanged(t *testing.T) {
	c := Chunk{Text: "short"}
	if got := c.Snippet(); got != "short" {
		t.Errorf("Snippet() = %q, want %q", got, "short")
	}
}

func TestSnippetCutsOnRuneBoundary(t *testing.T) {
	// Three-byte runes guarantee the byte limit lands mid-rune.
	c := Chunk{Text: strings.Repeat("日", 100)}

	got := c.Snippet()
	if !utf8.ValidString(got) {
		t.Fatalf("Snippet() produced invalid UTF-8: %q", got)
	}
	if len(got) > SnippetLen {
		t.Errorf("Snippet() length %d exceeds %d bytes", len(got), SnippetLen)
	}
	if got != strings.Repeat("日", 66) {
		t.Errorf("Snippet() kept %d runes, want 66", utf8.RuneCountInString(got))
	}
}

func TestSnippetASCIIBoundaryExact(t *testing.T) {
	c := Chunk{Text: strings.Repeat("a", SnippetLen+50)}
	if got := c.Snippet(); len(got) != SnippetLen {
		t.Errorf("Snippet() length = %d, want %d", len(got), SnippetLen)
	}
}
