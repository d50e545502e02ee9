package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/agilerag/internal/models"
)

// Provider names and defaults.
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"

	DefaultOpenAIModel   = "gpt-4-turbo-preview"
	DefaultDeepSeekModel = "deepseek-chat"
	DeepSeekBaseURL      = "https://api.deepseek.com/v1"
)

// minChatTemperature stands in for 0, which the client omits from the request.
const minChatTemperature = 1e-6

// ChatGenerator sends the prompt as a single user message to an OpenAI-compatible
// chat completions endpoint.
type ChatGenerator struct {
	name   string
	client *openai.Client
	opts   Options
}

// NewOpenAI creates an OpenAI chat generator.
func NewOpenAI(opts Options) (Generator, error) {
	return newChat(ProviderOpenAI, opts.withDefaults(DefaultOpenAIModel, ""))
}

// NewDeepSeek creates a DeepSeek generator; DeepSeek serves the OpenAI chat API.
func NewDeepSeek(opts Options) (Generator, error) {
	return newChat(ProviderDeepSeek, opts.withDefaults(DefaultDeepSeekModel, DeepSeekBaseURL))
}

func newChat(name string, opts Options) (*ChatGenerator, error) {
	if opts.APIKey == "" {
		return nil, models.NewValidationError("llm.api_key", "required for provider "+name)
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	return &ChatGenerator{name: name, client: openai.NewClientWithConfig(cfg), opts: opts}, nil
}

// Generate returns the first choice's message content.
func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   g.opts.MaxTokens,
		Temperature: chatTemperature(g.opts.Temperature),
	})
	if err != nil {
		return "", models.NewBackendError(g.name+" generate", err)
	}
	if len(resp.Choices) == 0 {
		return "", models.NewBackendError(g.name+" generate", errors.New("no choices in response"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func chatTemperature(t float64) float32 {
	if t <= 0 {
		return minChatTemperature
	}
	return float32(t)
}

// Name returns the provider name.
func (g *ChatGenerator) Name() string { return g.name }
