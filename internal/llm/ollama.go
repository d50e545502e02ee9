package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hyperjump/agilerag/internal/models"
)

// Ollama defaults.
const (
	ProviderOllama       = "ollama"
	DefaultOllamaModel   = "llama3"
	DefaultOllamaBaseURL = "http://localhost:11434"
)

// OllamaGenerator calls a local Ollama server's /api/generate endpoint without streaming.
type OllamaGenerator struct {
	client *http.Client
	opts   Options
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllama creates an Ollama generator. No API key is needed.
func NewOllama(opts Options) (Generator, error) {
	opts = opts.withDefaults(DefaultOllamaModel, DefaultOllamaBaseURL)
	return &OllamaGenerator{client: &http.Client{Timeout: opts.Timeout}, opts: opts}, nil
}

// Generate returns the model's full response.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:  g.opts.Model,
		Prompt: prompt,
		Options: ollamaOptions{
			NumPredict:  g.opts.MaxTokens,
			Temperature: g.opts.Temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", models.NewBackendError("ollama generate", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewBackendError("ollama generate", err)
	}
	var out ollamaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", models.NewBackendError("ollama generate",
			fmt.Errorf("status %d: decode response: %w", resp.StatusCode, err))
	}
	if out.Error != "" {
		return "", models.NewBackendError("ollama generate", fmt.Errorf("%s", out.Error))
	}
	if resp.StatusCode != http.StatusOK {
		return "", models.NewBackendError("ollama generate", fmt.Errorf("status %d", resp.StatusCode))
	}
	return strings.TrimSpace(out.Response), nil
}

// Name returns "ollama".
func (g *OllamaGenerator) Name() string { return ProviderOllama }
