package extract

import (
	"regexp"
	"strings"
)

var atxHeading = regexp.MustCompile(`^ {0,3}#{1,6}[ \t]+(.+?)[ \t#]*$`)

// extractMarkdown splits a markdown file into one section per ATX heading. Text before the
// first heading forms a section without a heading. Headings inside fenced code are ignored.
func extractMarkdown(content []byte) ([]Section, error) {
	lines := strings.SplitAfter(decodeText(content), "\n")
	var (
		sections []Section
		current  strings.Builder
		heading  string
		inFence  bool
	)
	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			sections = append(sections, Section{Text: current.String(), Heading: heading})
		}
		current.Reset()
	}
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(strings.TrimSpace(trimmed), "```") || strings.HasPrefix(strings.TrimSpace(trimmed), "~~~") {
			inFence = !inFence
		}
		if !inFence {
			if m := atxHeading.FindStringSubmatch(trimmed); m != nil {
				flush()
				heading = strings.TrimSpace(m[1])
			}
		}
		current.WriteString(line)
	}
	flush()
	return sections, nil
}
