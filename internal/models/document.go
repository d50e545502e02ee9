// Package models defines core data structures for retrieval units, citations, queries, and answers.
package models

import (
	"math"
	"strconv"
)

// Metadata keys stamped on retrieval units.
const (
	KeySourceFile  = "source_file"
	KeySourcePath  = "source_path"
	KeyCategory    = "category"
	KeyFileType    = "file_type"
	KeyFileHash    = "file_hash"
	KeyPage        = "page"
	KeyTotalPages  = "total_pages"
	KeySection     = "section"
	KeyChunkID     = "chunk_id"
	KeyChunkSize   = "chunk_size"
	KeySubChunkID  = "sub_chunk_id"
	KeyProcessedAt = "processed_at"
	KeyContentHash = "content_hash"
	KeyTitle       = "title"
	KeyAuthor      = "author"
)

// RequiredKeys must be present on every unit before it is indexed.
var RequiredKeys = []string{KeySourceFile, KeyCategory}

// Document categories.
const (
	CategoryScrum    = "scrum"
	CategoryKanban   = "kanban"
	CategorySyllabus = "syllabus"
	CategoryGeneral  = "general"
)

// Metadata is a flat mapping of scalar values (string, bool, integer or float kinds).
type Metadata map[string]any

// Clone returns a shallow copy of m. A nil map yields an empty one.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the value at key rendered as text, and whether it was present.
func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	return FormatScalar(v), true
}

// RetrievalUnit is the atomic indexed object: text plus provenance metadata.
// ID is empty until the unit is inserted into a collection.
type RetrievalUnit struct {
	ID       string   `json:"id,omitempty"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Clone returns a copy of u whose metadata can be modified independently.
func (u *RetrievalUnit) Clone() *RetrievalUnit {
	return &RetrievalUnit{ID: u.ID, Content: u.Content, Metadata: u.Metadata.Clone()}
}

// SourceDocument describes one ingested file. It is never persisted; only its units are.
type SourceDocument struct {
	Path     string `json:"path"`
	Category string `json:"category"`
	FileType string `json:"file_type"`
	FileHash string `json:"file_hash"`
}

// LoadedText is one block of normalized text produced by loading a file, before chunking.
type LoadedText struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// IsScalar reports whether v is a metadata-compatible scalar.
func IsScalar(v any) bool {
	switch v.(type) {
	case string, bool:
		return true
	}
	_, ok := toFloat(v)
	return ok
}

// ScalarEqual compares two metadata values. Numbers compare by value across kinds so that an
// int page matches the float64 it becomes after a JSON round trip.
func ScalarEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	af, ok := toFloat(a)
	if !ok {
		return false
	}
	bf, ok := toFloat(b)
	return ok && af == bf
}

// FormatScalar renders a scalar the way it would be shown in a citation.
func FormatScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	}
	if f, ok := toFloat(v); ok {
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
