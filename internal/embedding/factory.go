package embedding

import (
	"fmt"
	"strings"

	"github.com/hyperjump/agilerag/internal/models"
)

// Model names accepted by New.
const (
	ModelHashing      = "hashing"
	ModelONNX         = "onnx"
	modelOpenAIPrefix = "openai:"
)

// Config selects and parameterizes an embedder.
type Config struct {
	// Model is "hashing", "onnx", or "openai:<model name>". Empty means hashing.
	Model      string
	ModelPath  string
	Dimensions int
	MaxTokens  int
	// CacheSize > 0 wraps the embedder in an LRU cache.
	CacheSize int
	APIKey    string
	BaseURL   string
}

// New builds the embedder described by cfg.
func New(cfg Config) (Embedder, error) {
	var e Embedder
	switch {
	case cfg.Model == "" || cfg.Model == ModelHashing:
		e = NewHashingEmbedder(cfg.Dimensions)
	case cfg.Model == ModelONNX:
		onnx, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		e = onnx
	case strings.HasPrefix(cfg.Model, modelOpenAIPrefix):
		dims := cfg.Dimensions
		if dims <= 0 {
			dims = DefaultDimensions
		}
		oa, err := NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, strings.TrimPrefix(cfg.Model, modelOpenAIPrefix), dims)
		if err != nil {
			return nil, err
		}
		e = oa
	default:
		return nil, models.NewValidationError("embedding.model",
			fmt.Sprintf("unknown model %q (want %s, %s, or %s<name>)", cfg.Model, ModelHashing, ModelONNX, modelOpenAIPrefix))
	}
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}
