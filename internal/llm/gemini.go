package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/hyperjump/agilerag/internal/models"
)

// Gemini provider names and defaults. "google" and "gemini" select the same backend.
const (
	ProviderGoogle = "google"
	ProviderGemini = "gemini"

	DefaultGeminiModel = "gemini-pro"
)

// GeminiGenerator calls the Gemini API generateContent endpoint.
type GeminiGenerator struct {
	client *genai.Client
	opts   Options
}

// NewGemini creates a Gemini generator. BaseURL is only needed for proxies and tests.
func NewGemini(opts Options) (Generator, error) {
	opts = opts.withDefaults(DefaultGeminiModel, "")
	if opts.APIKey == "" {
		return nil, models.NewValidationError("llm.api_key", "required for provider "+ProviderGemini)
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      opts.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: opts.Timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: opts.BaseURL},
	})
	if err != nil {
		return nil, models.NewBackendError("gemini client", err)
	}
	return &GeminiGenerator{client: client, opts: opts}, nil
}

// Generate sends prompt as a single user turn and returns the concatenated text parts.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	temperature := float32(g.opts.Temperature)
	resp, err := g.client.Models.GenerateContent(ctx, g.opts.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(min(g.opts.MaxTokens, 1<<31-1)),
	})
	if err != nil {
		return "", models.NewBackendError("gemini generate", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", models.NewBackendError("gemini generate", errors.New("no text content in response"))
	}
	return text, nil
}

// Name returns "gemini".
func (g *GeminiGenerator) Name() string { return ProviderGemini }
