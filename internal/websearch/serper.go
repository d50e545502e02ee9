package websearch

import (
	"context"
	"net/http"

	"github.com/hyperjump/agilerag/internal/models"
)

const serperURL = "https://google.serper.dev/search"

// Serper searches Google through the Serper API.
type Serper struct {
	client     *http.Client
	apiKey     string
	maxResults int
	url        string
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search returns up to maxResults formatted organic hits.
func (s *Serper) Search(ctx context.Context, query string) (string, error) {
	var resp serperResponse
	headers := map[string]string{"X-API-KEY": s.apiKey}
	if err := postJSON(ctx, s.client, s.url, headers, serperRequest{Q: query, Num: s.maxResults}, &resp); err != nil {
		return "", models.NewBackendError("serper search", err)
	}
	results := make([]Result, 0, len(resp.Organic))
	for _, r := range resp.Organic {
		if len(results) == s.maxResults {
			break
		}
		results = append(results, Result{Title: r.Title, Snippet: r.Snippet, URL: r.Link})
	}
	return Format(results), nil
}

// Name returns "serper".
func (s *Serper) Name() string { return ProviderSerper }
