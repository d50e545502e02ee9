package models

// ScoredUnit is a single search hit. Score is cosine similarity; higher is more relevant.
type ScoredUnit struct {
	Unit  *RetrievalUnit `json:"unit"`
	Score float64        `json:"score"`
}

// CitationRecord is the provenance projection of a unit's metadata.
// Uniqueness key is (SourceDocument, Page).
type CitationRecord struct {
	SourceDocument string `json:"source_document"`
	Category       string `json:"category"`
	Section        string `json:"section"`
	Page           string `json:"page"`
	Title          string `json:"title,omitempty"`
	Author         string `json:"author,omitempty"`
}

// Key returns the deduplication key of the citation.
func (c CitationRecord) Key() string {
	return c.SourceDocument + "\x00" + c.Page
}

// Source is a unit returned alongside an answer.
type Source struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}

// Answer is the response to a QueryRequest.
type Answer struct {
	Answer     string           `json:"answer"`
	NumSources int              `json:"num_sources"`
	Sources    []Source         `json:"sources,omitempty"`
	Citations  []CitationRecord `json:"citations,omitempty"`
	Provider   string           `json:"provider,omitempty"`
	UsedSearch bool             `json:"used_search"`
	Degraded   bool             `json:"degraded,omitempty"`
}
