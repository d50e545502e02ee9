package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/agilerag/internal/models"
)

const openAIBatchSize = 256

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an embedder for model. baseURL may point at any compatible server;
// empty uses the OpenAI default. dimensions must match what the model returns.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimensions int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, models.NewValidationError("api_key", "required for openai embeddings")
	}
	if model == "" {
		return nil, models.NewValidationError("model", "must not be empty")
	}
	if dimensions <= 0 {
		return nil, models.NewValidationError("dimensions", "must be positive")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch requests embeddings in batches and returns them in input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openAIBatchSize {
		end := min(start+openAIBatchSize, len(texts))
		vecs, err := e.request(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, models.NewBackendError("openai embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, models.NewBackendError("openai embeddings",
			fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts)))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, models.NewBackendError("openai embeddings", fmt.Errorf("embedding index %d out of range", d.Index))
		}
		if len(d.Embedding) != e.dimensions {
			return nil, models.NewBackendError("openai embeddings",
				fmt.Errorf("embedding has %d dimensions, want %d", len(d.Embedding), e.dimensions))
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Dimensions returns the configured vector size.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// ModelID returns "openai:<model>".
func (e *OpenAIEmbedder) ModelID() string { return modelOpenAIPrefix + e.model }

// Close is a no-op.
func (e *OpenAIEmbedder) Close() error { return nil }
