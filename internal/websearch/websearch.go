// Package websearch provides web search backends used when the knowledge base has no answer.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/agilerag/internal/models"
)

// Provider names.
const (
	ProviderTavily = "tavily"
	ProviderSerper = "serper"
)

// Defaults.
const (
	DefaultMaxResults = 5
	DefaultTimeout    = 15 * time.Second
)

// Backend runs a web search and returns formatted result snippets.
type Backend interface {
	Search(ctx context.Context, query string) (string, error)
	Name() string
}

// Config selects and configures a backend.
type Config struct {
	// Provider is "tavily" or "serper"; empty picks by which key is set, serper first.
	Provider   string
	TavilyKey  string
	SerperKey  string
	MaxResults int
	Timeout    time.Duration
	// BaseURL overrides the provider endpoint.
	BaseURL string
}

// Result is one search hit.
type Result struct {
	Title   string
	Snippet string
	URL     string
}

// New builds the backend described by cfg.
func New(cfg Config) (Backend, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		switch {
		case cfg.SerperKey != "":
			provider = ProviderSerper
		case cfg.TavilyKey != "":
			provider = ProviderTavily
		default:
			return nil, models.NewValidationError("search.api_key", "set SERPER_API_KEY or TAVILY_API_KEY")
		}
	}
	client := &http.Client{Timeout: cfg.Timeout}
	switch provider {
	case ProviderSerper:
		if cfg.SerperKey == "" {
			return nil, models.NewValidationError("search.api_key", "required for serper")
		}
		return &Serper{client: client, apiKey: cfg.SerperKey, maxResults: cfg.MaxResults, url: orDefault(cfg.BaseURL, serperURL)}, nil
	case ProviderTavily:
		if cfg.TavilyKey == "" {
			return nil, models.NewValidationError("search.api_key", "required for tavily")
		}
		return &Tavily{client: client, apiKey: cfg.TavilyKey, maxResults: cfg.MaxResults, url: orDefault(cfg.BaseURL, tavilyURL)}, nil
	default:
		return nil, models.NewValidationError("search.provider", fmt.Sprintf("unknown provider %q", cfg.Provider))
	}
}

// Format renders results as numbered "[n] title\nsnippet\nurl" blocks separated by blank lines.
func Format(results []Result) string {
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("[%d] %s\n%s\n%s", i+1, r.Title, r.Snippet, r.URL))
	}
	return strings.Join(blocks, "\n\n")
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
