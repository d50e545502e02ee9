package metadata

import (
	"fmt"

	"github.com/hyperjump/agilerag/internal/models"
)

// ExtractCitation projects a unit's metadata into a citation record.
// Missing section and page become "N/A"; a missing source becomes "Unknown" and category "general".
func (r *Registry) ExtractCitation(unit *models.RetrievalUnit) models.CitationRecord {
	md := unit.Metadata
	return models.CitationRecord{
		SourceDocument: stringOr(md, models.KeySourceFile, "Unknown"),
		Category:       stringOr(md, models.KeyCategory, models.CategoryGeneral),
		Section:        stringOr(md, models.KeySection, NotAvailable),
		Page:           stringOr(md, models.KeyPage, NotAvailable),
		Title:          stringOr(md, models.KeyTitle, ""),
		Author:         stringOr(md, models.KeyAuthor, ""),
	}
}

// Aggregate returns one citation per (source_document, page) in first-seen order.
func (r *Registry) Aggregate(units []*models.RetrievalUnit) []models.CitationRecord {
	seen := make(map[string]struct{}, len(units))
	out := make([]models.CitationRecord, 0, len(units))
	for _, u := range units {
		c := r.ExtractCitation(u)
		if _, dup := seen[c.Key()]; dup {
			continue
		}
		seen[c.Key()] = struct{}{}
		out = append(out, c)
	}
	return out
}

// FormatCitation renders a citation as a short attribution block.
func FormatCitation(c models.CitationRecord) string {
	return fmt.Sprintf("---\nSource: %s\nSection: %s\nPage: %s\n---", c.SourceDocument, c.Section, c.Page)
}

func stringOr(md models.Metadata, key, def string) string {
	if s, ok := md.String(key); ok && s != "" {
		return s
	}
	return def
}
