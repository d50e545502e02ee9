package embedding

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/hyperjump/agilerag/pkg/utils"
)

// DefaultDimensions is the vector size used when none is configured.
const DefaultDimensions = 384

const minTokenRunes = 3

// HashingEmbedder is a deterministic bag-of-words embedder. Each word of at least three
// characters increments one hashed bucket; the vector is then L2-normalized, so cosine
// similarity reflects shared vocabulary. It needs no model files or network access.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder creates a hashing embedder. dimensions <= 0 selects DefaultDimensions.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed returns the normalized term-count vector of text. Text without usable words maps to the zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, e.dimensions)
	for _, w := range Words(text) {
		if utf8.RuneCountInString(w) < minTokenRunes {
			continue
		}
		vec[bucket(w, e.dimensions)]++
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the vector size.
func (e *HashingEmbedder) Dimensions() int { return e.dimensions }

// ModelID returns "hashing-<dimensions>".
func (e *HashingEmbedder) ModelID() string { return fmt.Sprintf("%s-%d", ModelHashing, e.dimensions) }

// Close is a no-op.
func (e *HashingEmbedder) Close() error { return nil }
