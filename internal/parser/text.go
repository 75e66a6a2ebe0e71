package parser

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// TextParser handles plain text files.
type TextParser struct{}

var _ Parser = (*TextParser)(nil)

func (p *TextParser) Parse(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}) // UTF-8 BOM
	if !utf8.Valid(data) {
		return "", fmt.Errorf("content is not valid UTF-8")
	}
	return string(data), nil
}

// MarkdownParser handles Markdown files. YAML frontmatter is parsed
// and discarded: the delimiters and keys would otherwise pollute
// chunk text, and retrieval works on prose.
type MarkdownParser struct{}

var _ Parser = (*MarkdownParser)(nil)

func (p *MarkdownParser) Parse(data []byte) (string, error) {
	text := &TextParser{}
	content, err := text.Parse(data)
	if err != nil {
		return "", err
	}
	return stripFrontmatter(content), nil
}

// stripFrontmatter removes a leading YAML frontmatter block when it
// parses as valid YAML. Malformed frontmatter is left in place rather
// than silently dropped.
func stripFrontmatter(content string) string {
	if !strings.HasPrefix(content, "---\n") {
		return content
	}
	end := strings.Index(content[4:], "\n---")
	if end < 0 {
		return content
	}

	block := content[4 : 4+end]
	var fm map[string]any
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return content
	}

	rest := content[4+end+4:]
	return strings.TrimPrefix(rest, "\n")
}
