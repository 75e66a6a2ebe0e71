package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// DOCXParser extracts paragraph text from Word documents. A .docx file
// is a zip archive; the document body lives in word/document.xml with
// text runs in <w:t> elements and paragraph breaks at </w:p>.
type DOCXParser struct{}

var _ Parser = (*DOCXParser)(nil)

func (p *DOCXParser) Parse(data []byte) (string, error) {
	body, err := readZipEntry(data, "word/document.xml")
	if err != nil {
		return "", err
	}

	text, err := collectXMLText(body, "t", "p")
	if err != nil {
		return "", fmt.Errorf("decode document.xml: %w", err)
	}
	if text == "" {
		return "", fmt.Errorf("document contains no text")
	}
	return text, nil
}

// PPTXParser extracts text from PowerPoint slide decks. Slides live in
// ppt/slides/slideN.xml with text runs in <a:t> elements; slides are
// processed in deck order.
type PPTXParser struct{}

var _ Parser = (*PPTXParser)(nil)

func (p *PPTXParser) Parse(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pptx: %w", err)
	}

	var slides []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f)
		}
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("no slides found")
	}
	sort.Slice(slides, func(i, j int) bool { return slideNum(slides[i].Name) < slideNum(slides[j].Name) })

	var parts []string
	for _, f := range slides {
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", f.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", f.Name, err)
		}

		text, err := collectXMLText(raw, "t", "p")
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", f.Name, err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("deck contains no text")
	}
	return strings.Join(parts, "\n\n"), nil
}

// slideNum pulls the numeric suffix out of ppt/slides/slideN.xml.
func slideNum(name string) int {
	base := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml")
	n := 0
	for _, r := range base {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// readZipEntry returns the decompressed content of one archive member.
func readZipEntry(data []byte, name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("missing archive member %s", name)
}

// collectXMLText streams an OOXML body, gathering character data inside
// textElem elements and inserting line breaks when breakElem closes.
// Element names are matched by local name, ignoring namespaces.
func collectXMLText(body []byte, textElem, breakElem string) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var sb strings.Builder
	inText := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == textElem {
				inText++
			}
		case xml.EndElement:
			if t.Name.Local == textElem && inText > 0 {
				inText--
			}
			if t.Name.Local == breakElem {
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText > 0 {
				sb.Write(t)
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}
