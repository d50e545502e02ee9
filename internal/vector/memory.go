// Package vector provides the persistent vector collection and its in-memory search index.
package vector

import (
	"fmt"
	"sort"
	"sync"
)

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID    string
	Score float64 // cosine similarity
}

// MemoryIndex is an in-memory vector index using brute-force cosine search.
// Entries keep insertion order, which breaks score ties.
type MemoryIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	norms      []float64
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{dimensions: dimensions}, nil
}

// Dimensions returns the vector size accepted by the index.
func (m *MemoryIndex) Dimensions() int { return m.dimensions }

// Add appends vectors with the given IDs. Nothing is added if any vector has the wrong size.
func (m *MemoryIndex) Add(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	for _, v := range vectors {
		if len(v) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(v), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, vec)
		m.norms = append(m.norms, L2Norm(vec))
	}
	return nil
}

// Search returns up to k hits by descending cosine similarity. When keep is non-nil only IDs
// it accepts are ranked, so filtering happens before the top-k cut.
func (m *MemoryIndex) Search(query []float32, k int, keep func(id string) bool) ([]VectorResult, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	qn := L2Norm(query)

	m.mu.RLock()
	defer m.mu.RUnlock()
	scores := make([]VectorResult, 0, len(m.ids))
	for i, id := range m.ids {
		if keep != nil && !keep(id) {
			continue
		}
		var score float64
		if qn > 0 && m.norms[i] > 0 {
			score = InnerProduct(query, m.vectors[i]) / (qn * m.norms[i])
		}
		scores = append(scores, VectorResult{ID: id, Score: score})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k < len(scores) {
		scores = scores[:k]
	}
	return scores, nil
}

// Remove drops vectors by ID and returns how many were removed.
func (m *MemoryIndex) Remove(ids []string) int {
	removeSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		removeSet[id] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := 0
	for i, id := range m.ids {
		if _, drop := removeSet[id]; drop {
			continue
		}
		m.ids[kept], m.vectors[kept], m.norms[kept] = id, m.vectors[i], m.norms[i]
		kept++
	}
	removed := len(m.ids) - kept
	clear(m.vectors[kept:])
	m.ids, m.vectors, m.norms = m.ids[:kept], m.vectors[:kept], m.norms[:kept]
	return removed
}

// Reset removes every vector.
func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids, m.vectors, m.norms = nil, nil, nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}
