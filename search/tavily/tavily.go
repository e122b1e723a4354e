// Package tavily implements the search capability against the Tavily API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/wrenai/wren/search"
)

const tavilyAPIURL = "https://api.tavily.com/search"

// Config holds Tavily provider configuration
type Config struct {
	APIKey     string
	MaxResults int
	BaseURL    string // Overridable for tests
}

// DefaultConfig returns default Tavily configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:     apiKey,
		MaxResults: 5,
		BaseURL:    tavilyAPIURL,
	}
}

// Provider implements search.Searcher using the Tavily REST API.
type Provider struct {
	config *Config
	client *http.Client
}

// New creates a new Tavily provider
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.MaxResults <= 0 {
		config.MaxResults = 5
	}
	if config.BaseURL == "" {
		config.BaseURL = tavilyAPIURL
	}
	return &Provider{
		config: config,
		client: &http.Client{},
	}
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

// Search implements search.Searcher
func (p *Provider) Search(ctx context.Context, query string) (string, error) {
	if p.config.APIKey == "" {
		return "", &search.ProviderError{Provider: "tavily", Inner: fmt.Errorf("API key not configured")}
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:     p.config.APIKey,
		Query:      search.TruncateQuery(query),
		MaxResults: p.config.MaxResults,
	})
	if err != nil {
		return "", &search.ProviderError{Provider: "tavily", Inner: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", &search.ProviderError{Provider: "tavily", Inner: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &search.ProviderError{Provider: "tavily", Inner: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &search.ProviderError{Provider: "tavily", Inner: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &search.ProviderError{Provider: "tavily", Inner: fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(raw))}
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &search.ProviderError{Provider: "tavily", Inner: fmt.Errorf("parse response: %w", err)}
	}

	results := make([]search.Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, search.Result{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}
	return search.FormatResults(results), nil
}
