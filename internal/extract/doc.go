package extract

import (
	"fmt"
	"strings"

	"github.com/lu4p/cat"
)

// extractDOC handles legacy .doc files. Many of them are RTF or OOXML under a .doc name,
// which cat detects by content; binary Word 97 files are reported as unparseable.
func extractDOC(content []byte) ([]Section, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return nil, fmt.Errorf("read doc: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return []Section{{Text: text}}, nil
}
