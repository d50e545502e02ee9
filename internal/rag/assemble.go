package rag

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/agilerag/internal/models"
)

const contextSeparator = "\n\n"

// Assemble joins unit contents in ranked order until adding the next whole unit would exceed
// maxChars runes; that unit and everything after it are dropped. The first unit is always kept
// whole. maxChars <= 0 keeps everything. It returns the context and the units used.
func Assemble(units []models.ScoredUnit, maxChars int) (string, []models.ScoredUnit) {
	if len(units) == 0 {
		return "", nil
	}
	var sb strings.Builder
	sb.WriteString(units[0].Unit.Content)
	total := utf8.RuneCountInString(units[0].Unit.Content)
	used := 1
	for _, su := range units[1:] {
		n := utf8.RuneCountInString(contextSeparator) + utf8.RuneCountInString(su.Unit.Content)
		if maxChars > 0 && total+n > maxChars {
			break
		}
		sb.WriteString(contextSeparator)
		sb.WriteString(su.Unit.Content)
		total += n
		used++
	}
	return sb.String(), units[:used]
}
