package websearch

import (
	"context"
	"net/http"

	"github.com/hyperjump/agilerag/internal/models"
)

const tavilyURL = "https://api.tavily.com/search"

// Tavily searches through the Tavily API.
type Tavily struct {
	client     *http.Client
	apiKey     string
	maxResults int
	url        string
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search returns up to maxResults formatted hits.
func (t *Tavily) Search(ctx context.Context, query string) (string, error) {
	var resp tavilyResponse
	req := tavilyRequest{APIKey: t.apiKey, Query: query, MaxResults: t.maxResults}
	if err := postJSON(ctx, t.client, t.url, nil, req, &resp); err != nil {
		return "", models.NewBackendError("tavily search", err)
	}
	results := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(results) == t.maxResults {
			break
		}
		results = append(results, Result{Title: r.Title, Snippet: r.Content, URL: r.URL})
	}
	return Format(results), nil
}

// Name returns "tavily".
func (t *Tavily) Name() string { return ProviderTavily }
