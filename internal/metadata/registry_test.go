package metadata

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/agilerag/internal/models"
)

func fixedClock(ts time.Time) Option {
	return WithClock(func() time.Time { return ts })
}

func unit(src string, page any) *models.RetrievalUnit {
	md := models.Metadata{models.KeySourceFile: src, models.KeyCategory: "scrum"}
	if page != nil {
		md[models.KeyPage] = page
	}
	return &models.RetrievalUnit{Content: "content of " + src, Metadata: md}
}

func TestEnrich_StampsOnce(t *testing.T) {
	first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r := NewRegistry(fixedClock(first))
	u := &models.RetrievalUnit{Content: "Sprint Planning starts the sprint."}
	extra := models.Metadata{models.KeySourceFile: "guide.pdf", models.KeyCategory: "scrum"}

	r.Enrich(u, extra)
	require.Equal(t, "2025-03-01T10:00:00Z", u.Metadata[models.KeyProcessedAt])
	require.NotEmpty(t, u.Metadata[models.KeyContentHash])
	snapshot := u.Metadata.Clone()

	later := NewRegistry(fixedClock(first.Add(time.Hour)))
	later.Enrich(u, extra)
	assert.Equal(t, snapshot, u.Metadata, "second enrich must not change any field")
}

func TestEnrich_KeepsExistingHash(t *testing.T) {
	r := NewRegistry()
	u := &models.RetrievalUnit{Content: "x", Metadata: models.Metadata{models.KeyContentHash: "given"}}
	r.Enrich(u, nil)
	assert.Equal(t, "given", u.Metadata[models.KeyContentHash])
}

func TestValidate(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name string
		md   models.Metadata
		want bool
	}{
		{"both present", models.Metadata{"source_file": "a.pdf", "category": "scrum"}, true},
		{"missing category", models.Metadata{"source_file": "a.pdf"}, false},
		{"empty source", models.Metadata{"source_file": "", "category": "scrum"}, false},
		{"nil metadata", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &models.RetrievalUnit{Content: "c", Metadata: tt.md}
			before := u.Metadata.Clone()
			assert.Equal(t, tt.want, r.Validate(u))
			if tt.md != nil {
				assert.Equal(t, before, u.Metadata, "validate must not mutate")
			}
			err := r.Check(u)
			assert.Equal(t, tt.want, err == nil)
			if err != nil {
				assert.True(t, errors.Is(err, models.ErrValidation))
			}
		})
	}
}

func TestExtractCitation_Defaults(t *testing.T) {
	r := NewRegistry()
	c := r.ExtractCitation(&models.RetrievalUnit{Metadata: models.Metadata{}})
	assert.Equal(t, "Unknown", c.SourceDocument)
	assert.Equal(t, "general", c.Category)
	assert.Equal(t, NotAvailable, c.Section)
	assert.Equal(t, NotAvailable, c.Page)

	c = r.ExtractCitation(unit("A.pdf", float64(3)))
	assert.Equal(t, "3", c.Page, "JSON-decoded page numbers render as integers")
}

func TestAggregate_StableDedup(t *testing.T) {
	r := NewRegistry()
	got := r.Aggregate([]*models.RetrievalUnit{
		unit("A.pdf", 1),
		unit("A.pdf", 1),
		unit("B.pdf", 2),
	})
	require.Len(t, got, 2)
	assert.Equal(t, "A.pdf", got[0].SourceDocument)
	assert.Equal(t, "1", got[0].Page)
	assert.Equal(t, "B.pdf", got[1].SourceDocument)
	assert.Equal(t, "2", got[1].Page)
}

func TestAggregate_FirstSeenOrderNotSorted(t *testing.T) {
	r := NewRegistry()
	got := r.Aggregate([]*models.RetrievalUnit{unit("Z.md", nil), unit("A.md", nil), unit("Z.md", nil)})
	require.Len(t, got, 2)
	assert.Equal(t, "Z.md", got[0].SourceDocument)
	assert.Equal(t, "A.md", got[1].SourceDocument)
}

func TestFilter(t *testing.T) {
	r := NewRegistry()
	units := []*models.RetrievalUnit{unit("A.pdf", 1), unit("A.pdf", 2), unit("B.pdf", 2)}
	units[2].Metadata[models.KeyCategory] = "kanban"

	assert.Len(t, r.Filter(units, models.Metadata{"source_file": "A.pdf"}), 2)
	assert.Len(t, r.Filter(units, models.Metadata{"page": float64(2)}), 2)
	assert.Len(t, r.Filter(units, models.Metadata{"page": 2, "category": "scrum"}), 1)
	assert.Len(t, r.Filter(units, models.Metadata{"category": "Scrum"}), 0, "matching is exact")
	assert.Len(t, r.Filter(units, nil), 3)
}

func TestValidateFilter(t *testing.T) {
	assert.NoError(t, ValidateFilter(models.Metadata{"page": 1, "category": "scrum", "ok": true}))
	err := ValidateFilter(models.Metadata{"page": map[string]int{"gte": 1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestNewTemplateAndFormat(t *testing.T) {
	md := NewTemplate("guide.pdf", "scrum", models.Metadata{"section": "Events"})
	assert.Equal(t, "guide.pdf", md[models.KeySourceFile])
	assert.Equal(t, "Events", md[models.KeySection])

	c := models.CitationRecord{SourceDocument: "guide.pdf", Section: "Events", Page: "4"}
	assert.Equal(t, "---\nSource: guide.pdf\nSection: Events\nPage: 4\n---", FormatCitation(c))
}
