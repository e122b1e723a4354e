// Package mcp implements the search capability by delegating to a tool
// exposed by a remote MCP server.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/wrenai/wren/search"
)

// ErrClosed is returned when the provider has been closed.
var ErrClosed = errors.New("mcp searcher closed")

// Config describes how to reach the MCP server and which tool to call.
type Config struct {
	// Endpoint selects the streamable HTTP transport when set.
	Endpoint string
	// Command plus Args select the stdio transport when Endpoint is empty.
	Command string
	Args    []string
	// Tool is the remote tool name; defaults to "web_search".
	Tool string
}

// Provider implements search.Searcher over one MCP session.
type Provider struct {
	tool    string
	client  *sdkmcp.Client
	session *sdkmcp.ClientSession
}

// New connects to the MCP server described by cfg. Callers own the returned
// provider and must Close it.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	tool := cfg.Tool
	if tool == "" {
		tool = "web_search"
	}

	impl := &sdkmcp.Implementation{Name: "wren", Version: "1.0.0"}
	client := sdkmcp.NewClient(impl, nil)

	var transport sdkmcp.Transport
	switch {
	case cfg.Endpoint != "":
		transport = &sdkmcp.StreamableClientTransport{Endpoint: cfg.Endpoint}
	case cfg.Command != "":
		transport = &sdkmcp.CommandTransport{Command: exec.Command(cfg.Command, cfg.Args...)}
	default:
		return nil, errors.New("mcp searcher: endpoint or command required")
	}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp searcher: connect: %w", err)
	}

	return &Provider{tool: tool, client: client, session: session}, nil
}

// Search implements search.Searcher
func (p *Provider) Search(ctx context.Context, query string) (string, error) {
	if p.session == nil {
		return "", &search.ProviderError{Provider: "mcp", Inner: ErrClosed}
	}

	result, err := p.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      p.tool,
		Arguments: map[string]any{"query": search.TruncateQuery(query)},
	})
	if err != nil {
		return "", &search.ProviderError{Provider: "mcp", Inner: err}
	}

	text := normalizeContent(result.Content)
	if result.IsError {
		if text == "" {
			text = "tool returned error without message"
		}
		return "", &search.ProviderError{Provider: "mcp", Inner: errors.New(text)}
	}
	if text == "" {
		return search.NoResultsMarker, nil
	}
	return text, nil
}

// Close tears down the MCP session.
func (p *Provider) Close() error {
	if p.session == nil {
		return nil
	}
	err := p.session.Close()
	p.session = nil
	return err
}

func normalizeContent(content []sdkmcp.Content) string {
	if len(content) == 0 {
		return ""
	}
	parts := make([]string, 0, len(content))
	for _, c := range content {
		switch v := c.(type) {
		case *sdkmcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := c.MarshalJSON(); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
