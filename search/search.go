// Package search defines the web-search capability invoked by the
// orchestration loop, along with shared result formatting.
package search

import (
	"context"
	"fmt"
	"strings"
)

// MaxQueryLen is the documented upper bound on a search query; longer queries
// are truncated before reaching any provider.
const MaxQueryLen = 400

// NoResultsMarker is the literal text returned when a provider finds nothing.
const NoResultsMarker = "No results found."

// Searcher executes one web search and returns free-form result text.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Result is one search hit before formatting.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// ProviderError is a failure reported by a concrete search provider.
type ProviderError struct {
	Provider string
	Inner    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("search provider %s: %v", e.Provider, e.Inner)
}

func (e *ProviderError) Unwrap() error {
	return e.Inner
}

// TruncateQuery caps a query at MaxQueryLen without splitting a rune.
func TruncateQuery(query string) string {
	if len(query) <= MaxQueryLen {
		return query
	}
	runes := []rune(query)
	if len(runes) <= MaxQueryLen {
		return query
	}
	return string(runes[:MaxQueryLen])
}

// FormatResults renders hits as a numbered title/url/snippet listing, or the
// NoResultsMarker when the set is empty.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return NoResultsMarker
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, strings.TrimSpace(r.Title))
		if r.URL != "" {
			sb.WriteString("\n")
			sb.WriteString(r.URL)
		}
		if r.Snippet != "" {
			sb.WriteString("\n")
			sb.WriteString(strings.TrimSpace(r.Snippet))
		}
	}
	return sb.String()
}
