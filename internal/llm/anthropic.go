package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hyperjump/agilerag/internal/models"
)

// Anthropic defaults.
const (
	ProviderAnthropic       = "anthropic"
	DefaultAnthropicModel   = "claude-3-opus-20240229"
	DefaultAnthropicBaseURL = "https://api.anthropic.com"

	anthropicVersion = "2023-06-01"
)

// AnthropicGenerator calls the Anthropic messages API.
type AnthropicGenerator struct {
	client *http.Client
	opts   Options
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropic creates an Anthropic generator.
func NewAnthropic(opts Options) (Generator, error) {
	opts = opts.withDefaults(DefaultAnthropicModel, DefaultAnthropicBaseURL)
	if opts.APIKey == "" {
		return nil, models.NewValidationError("llm.api_key", "required for provider "+ProviderAnthropic)
	}
	return &AnthropicGenerator{client: &http.Client{Timeout: opts.Timeout}, opts: opts}, nil
}

// Generate sends prompt as one user message and joins the returned text blocks.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:       g.opts.Model,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.opts.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", models.NewBackendError("anthropic generate", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewBackendError("anthropic generate", err)
	}

	var out anthropicResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", models.NewBackendError("anthropic generate",
			fmt.Errorf("status %d: decode response: %w", resp.StatusCode, err))
	}
	if out.Error != nil {
		return "", models.NewBackendError("anthropic generate", fmt.Errorf("%s: %s", out.Error.Type, out.Error.Message))
	}
	if resp.StatusCode != http.StatusOK {
		return "", models.NewBackendError("anthropic generate", fmt.Errorf("status %d", resp.StatusCode))
	}
	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", models.NewBackendError("anthropic generate", errors.New("no text content in response"))
	}
	return strings.TrimSpace(sb.String()), nil
}

// Name returns "anthropic".
func (g *AnthropicGenerator) Name() string { return ProviderAnthropic }
