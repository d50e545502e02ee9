// Package metadata enriches, validates, filters, and projects provenance metadata of retrieval units.
package metadata

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/agilerag/internal/fileid"
	"github.com/hyperjump/agilerag/internal/models"
)

// NotAvailable is the sentinel for optional citation fields that are missing.
const NotAvailable = "N/A"

// Registry stamps and checks unit metadata. It holds no per-unit state and is safe for concurrent use.
type Registry struct {
	now func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source used for processed_at stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enrich merges extra into the unit's metadata and stamps processed_at and content_hash when absent.
// The unit is modified in place and returned. Enriching twice with the same extra changes nothing.
func (r *Registry) Enrich(unit *models.RetrievalUnit, extra models.Metadata) *models.RetrievalUnit {
	if unit.Metadata == nil {
		unit.Metadata = make(models.Metadata, len(extra)+2)
	}
	for k, v := range extra {
		unit.Metadata[k] = v
	}
	if _, ok := unit.Metadata[models.KeyProcessedAt]; !ok {
		unit.Metadata[models.KeyProcessedAt] = r.now().UTC().Format(time.RFC3339)
	}
	if _, ok := unit.Metadata[models.KeyContentHash]; !ok {
		unit.Metadata[models.KeyContentHash] = fileid.ContentHash(unit.Content)
	}
	return unit
}

// Validate reports whether every required key is present and non-empty.
func (r *Registry) Validate(unit *models.RetrievalUnit) bool {
	return len(missingKeys(unit)) == 0
}

// Check returns a ValidationError naming the missing required keys, or nil.
func Check(unit *models.RetrievalUnit) error {
	missing := missingKeys(unit)
	if len(missing) == 0 {
		return nil
	}
	return models.NewValidationError("metadata", "missing required keys: "+strings.Join(missing, ", "))
}

// Check is the error-returning form of Validate.
func (r *Registry) Check(unit *models.RetrievalUnit) error {
	return Check(unit)
}

func missingKeys(unit *models.RetrievalUnit) []string {
	var missing []string
	for _, key := range models.RequiredKeys {
		if unit == nil {
			missing = append(missing, key)
			continue
		}
		if s, ok := unit.Metadata.String(key); !ok || s == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// NewTemplate returns a metadata skeleton carrying the required keys plus extra.
func NewTemplate(sourceFile, category string, extra models.Metadata) models.Metadata {
	md := extra.Clone()
	md[models.KeySourceFile] = sourceFile
	md[models.KeyCategory] = category
	return md
}

// ValidateFilter rejects criteria holding non-scalar values.
func ValidateFilter(criteria models.Metadata) error {
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !models.IsScalar(criteria[k]) {
			return models.NewValidationError("filter."+k, fmt.Sprintf("unsupported value type %T", criteria[k]))
		}
	}
	return nil
}

// Matches reports whether md satisfies every criterion by exact equality.
func Matches(md, criteria models.Metadata) bool {
	for k, want := range criteria {
		got, ok := md[k]
		if !ok || !models.ScalarEqual(got, want) {
			return false
		}
	}
	return true
}

// Filter keeps units whose metadata matches every criterion exactly. Empty criteria keeps all units.
func (r *Registry) Filter(units []*models.RetrievalUnit, criteria models.Metadata) []*models.RetrievalUnit {
	out := make([]*models.RetrievalUnit, 0, len(units))
	for _, u := range units {
		if Matches(u.Metadata, criteria) {
			out = append(out, u)
		}
	}
	return out
}
