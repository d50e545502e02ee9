package extract

import (
	"strings"
	"unicode/utf8"
)

const formFeed = "\f"

// decodeText returns content as a string, replacing invalid UTF-8 sequences.
func decodeText(content []byte) string {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "\ufffd")
	}
	return string(content)
}

// extractPlain returns the whole file as one section. Form feeds, as written by pdftotext,
// are treated as page breaks and produce one section per non-blank page.
func extractPlain(content []byte) ([]Section, error) {
	text := decodeText(content)
	if !strings.Contains(text, formFeed) {
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return []Section{{Text: text}}, nil
	}
	pages := strings.Split(text, formFeed)
	var sections []Section
	for i, p := range pages {
		if strings.TrimSpace(p) == "" {
			continue
		}
		sections = append(sections, Section{Text: p, Page: i + 1, TotalPages: len(pages)})
	}
	return sections, nil
}
