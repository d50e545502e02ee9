// Package indexer provides document chunking, loading, and ingestion into a collection.
package indexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/agilerag/internal/fileid"
	"github.com/hyperjump/agilerag/internal/models"
)

// separatorLevels lists cut separators from coarsest to finest. A cut is placed right after
// the separator so it stays with the preceding segment.
var separatorLevels = [][]string{
	{"\n\n\n"},
	{"\n\n"},
	{"\n"},
	{". ", "? ", "! "},
	{", ", "; "},
	{" "},
}

// Chunker splits text into bounded, overlapping segments measured in characters (runes).
type Chunker struct {
	maxSize int
	overlap int
}

// NewChunker creates a chunker. maxSize must be positive and overlap must be in [0, maxSize).
func NewChunker(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, models.NewValidationError("chunk_size", "must be positive")
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, models.NewValidationError("chunk_overlap", fmt.Sprintf("must be in [0, %d)", maxSize))
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// MaxSize returns the segment size bound.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the number of characters shared by consecutive segments.
func (c *Chunker) Overlap() int { return c.overlap }

// Split divides text into segments of at most MaxSize characters. Consecutive segments share
// exactly Overlap characters, so dropping the first Overlap characters of every segment but
// the first and concatenating yields the original text. Empty or blank text yields nil.
func (c *Chunker) Split(text string) []string {
	return split([]rune(text), c.maxSize, c.overlap)
}

func split(runes []rune, maxSize, overlap int) []string {
	if strings.TrimSpace(string(runes)) == "" {
		return nil
	}
	var segments []string
	start := 0
	for {
		if len(runes)-start <= maxSize {
			return append(segments, string(runes[start:]))
		}
		// The cut must leave more than overlap characters in the segment so the next start advances.
		end := cutPoint(runes, start, start+overlap+1, start+overlap+(maxSize-overlap+1)/2, start+maxSize)
		segments = append(segments, string(runes[start:end]))
		start = end - overlap
	}
}

// cutPoint returns the end position in [lo, hi] right after a separator, preferring the
// coarsest separator in the upper window [mid, hi] so each segment carries at least half a
// window of new text. The full window is searched only when the upper one has no separator,
// and with none at all the cut is forced at hi.
func cutPoint(runes []rune, start, lo, mid, hi int) int {
	if end, ok := lastSeparator(runes, start, mid, hi); ok {
		return end
	}
	if end, ok := lastSeparator(runes, start, lo, mid-1); ok {
		return end
	}
	return hi
}

// lastSeparator finds the latest end in [lo, hi] after a separator of the coarsest level present.
func lastSeparator(runes []rune, start, lo, hi int) (int, bool) {
	for _, level := range separatorLevels {
		for end := hi; end >= lo; end-- {
			for _, sep := range level {
				if endsWith(runes, start, end, sep) {
					return end, true
				}
			}
		}
	}
	return 0, false
}

func endsWith(runes []rune, start, end int, sep string) bool {
	n := utf8.RuneCountInString(sep)
	if end-n < start {
		return false
	}
	i := end - n
	for _, r := range sep {
		if runes[i] != r {
			return false
		}
		i++
	}
	return true
}

// Rechunk re-splits a unit whose content exceeds newMaxSize. Fragments copy the parent
// metadata (keeping chunk_id), carry a sub_chunk_id, and get their own content_hash. A unit that already fits is returned as is.
func (c *Chunker) Rechunk(unit *models.RetrievalUnit, newMaxSize int) ([]*models.RetrievalUnit, error) {
	if newMaxSize <= 0 {
		return nil, models.NewValidationError("max_size", "must be positive")
	}
	runes := []rune(unit.Content)
	if len(runes) <= newMaxSize {
		return []*models.RetrievalUnit{unit}, nil
	}
	overlap := c.overlap
	if limit := newMaxSize / 4; overlap > limit {
		overlap = limit
	}
	parts := split(runes, newMaxSize, overlap)
	out := make([]*models.RetrievalUnit, 0, len(parts))
	for i, part := range parts {
		md := unit.Metadata.Clone()
		md[models.KeyContentHash] = fileid.ContentHash(part)
		md[models.KeySubChunkID] = i
		md[models.KeyChunkSize] = utf8.RuneCountInString(part)
		out = append(out, &models.RetrievalUnit{Content: part, Metadata: md})
	}
	return out, nil
}

// Stats summarizes the sizes of a set of units.
type Stats struct {
	Count      int     `json:"count"`
	TotalChars int     `json:"total_chars"`
	AvgChars   float64 `json:"avg_chars"`
	MinChars   int     `json:"min_chars"`
	MaxChars   int     `json:"max_chars"`
}

// ComputeStats returns size statistics for units. An empty input yields zero stats.
func ComputeStats(units []*models.RetrievalUnit) Stats {
	var s Stats
	for i, u := range units {
		n := utf8.RuneCountInString(u.Content)
		s.TotalChars += n
		if i == 0 || n < s.MinChars {
			s.MinChars = n
		}
		if n > s.MaxChars {
			s.MaxChars = n
		}
	}
	s.Count = len(units)
	if s.Count > 0 {
		s.AvgChars = float64(s.TotalChars) / float64(s.Count)
	}
	return s
}
