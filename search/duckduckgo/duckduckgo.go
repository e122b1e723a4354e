// Package duckduckgo implements a keyless search capability by scraping the
// DuckDuckGo HTML endpoint.
package duckduckgo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/wrenai/wren/search"
)

const htmlEndpoint = "https://html.duckduckgo.com/html/"

// Config holds DuckDuckGo provider configuration
type Config struct {
	MaxResults int
	BaseURL    string // Overridable for tests
}

// DefaultConfig returns default DuckDuckGo configuration
func DefaultConfig() *Config {
	return &Config{
		MaxResults: 5,
		BaseURL:    htmlEndpoint,
	}
}

// Provider implements search.Searcher against the DuckDuckGo HTML endpoint.
// No API key is required.
type Provider struct {
	config *Config
	client *http.Client
}

// New creates a new DuckDuckGo provider
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxResults <= 0 {
		config.MaxResults = 5
	}
	if config.BaseURL == "" {
		config.BaseURL = htmlEndpoint
	}
	return &Provider{
		config: config,
		client: &http.Client{},
	}
}

// Search implements search.Searcher
func (p *Provider) Search(ctx context.Context, query string) (string, error) {
	endpoint := p.config.BaseURL + "?q=" + url.QueryEscape(search.TruncateQuery(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &search.ProviderError{Provider: "duckduckgo", Inner: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; wren/1.0)")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &search.ProviderError{Provider: "duckduckgo", Inner: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &search.ProviderError{Provider: "duckduckgo", Inner: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", &search.ProviderError{Provider: "duckduckgo", Inner: fmt.Errorf("parse page: %w", err)}
	}

	var results []search.Result
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find(".result__a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		results = append(results, search.Result{
			Title:   title,
			URL:     resolveRedirect(href),
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
		})
		return len(results) < p.config.MaxResults
	})

	return search.FormatResults(results), nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg=<target> redirect links.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	if parsed.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
