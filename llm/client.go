// Package llm implements a streaming client for OpenAI-compatible
// chat-completion APIs, including incremental SSE decoding and tool-call
// reassembly.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/wrenai/wren/message"
	"github.com/wrenai/wren/pkg/logging"
)

// Config holds the connection settings for one chat-completion provider.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// DefaultConfig returns a Config preset for OpenRouter.
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		BaseURL:     "https://openrouter.ai/api/v1",
		Model:       "deepseek/deepseek-chat",
		Temperature: 0.7,
	}
}

// Client talks to a single chat-completion endpoint. One Client may serve
// many streaming calls; per-stream state never outlives its call.
type Client struct {
	config *Config
	client *http.Client
	logger *slog.Logger
}

// New creates a chat-completion client.
func New(config *Config) *Client {
	if config == nil {
		config = DefaultConfig("")
	}
	return &Client{
		config: config,
		// No client-level timeout: streams are long-lived and are cancelled
		// through the request context instead.
		client: &http.Client{},
		logger: logging.WithComponent("llm"),
	}
}

// chatMessage is the wire form of a conversation message.
type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	Name       string         `json:"name,omitempty"`
}

// wireToolCall is the wire form of an assistant tool call.
type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// chatRequest is the body of POST {base}/chat/completions.
type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []chatMessage    `json:"messages"`
	Stream      bool             `json:"stream"`
	Temperature *float64         `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Tools       []map[string]any `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
}

// WebSearchTool returns the single function tool advertised to the API.
func WebSearchTool() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        "web_search",
			"description": "Search the web for current information. Use this when the user asks about recent events or facts you are unsure about.",
			"parameters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query (max 400 characters)",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

func toWireMessages(msgs []*message.Message) []chatMessage {
	wire := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		cm := chatMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunction{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		wire = append(wire, cm)
	}
	return wire
}

// ChatStream opens one streaming completion call and returns an ordered event
// channel. The channel is closed after the terminal Done or Error event.
// Cancelling ctx aborts the underlying connection promptly.
func (c *Client) ChatStream(ctx context.Context, msgs []*message.Message, tools []map[string]any) <-chan StreamEvent {
	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		emit := func(ev StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		c.stream(ctx, msgs, tools, emit)
	}()
	return events
}

func (c *Client) stream(ctx context.Context, msgs []*message.Message, tools []map[string]any, emit func(StreamEvent) bool) {
	body := chatRequest{
		Model:     c.config.Model,
		Messages:  toWireMessages(msgs),
		Stream:    true,
		MaxTokens: c.config.MaxTokens,
		Tools:     tools,
	}
	// Temperature is optional on the wire; zero means "not set" and lets the
	// server apply its own default.
	if temp := c.config.Temperature; temp > 0 {
		body.Temperature = &temp
	}
	if len(tools) > 0 {
		body.ToolChoice = "auto"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		emit(ErrorEvent(fmt.Sprintf("Failed to encode request: %v", err)))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		emit(ErrorEvent(fmt.Sprintf("Failed to create request: %v", err)))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("starting chat stream", "model", c.config.Model, "messages", len(msgs), "tools", len(tools))

	resp, err := c.client.Do(req)
	if err != nil {
		emit(ErrorEvent(classifyTransportError(err)))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		msg := classifyStatus(resp.StatusCode, raw)
		c.logger.Warn("chat stream rejected", "status", resp.StatusCode)
		emit(ProtocolErrorEvent(msg, resp.StatusCode))
		return
	}

	c.readStream(resp.Body, emit)
}

// modelsResponse is the body of GET {base}/models.
type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels fetches the model catalogue and returns the sorted list of ids.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Message: classifyTransportError(err), Inner: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Message: classifyTransportError(err), Inner: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Message: classifyStatus(resp.StatusCode, raw)}
	}

	var models modelsResponse
	if err := json.Unmarshal(raw, &models); err != nil {
		return nil, fmt.Errorf("parse models response: %w", err)
	}

	ids := make([]string, 0, len(models.Data))
	for _, m := range models.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// TestConnection performs a one-shot non-streaming completion with a fixed
// short prompt. It validates reachability and authentication only; the reply
// text is discarded.
func (c *Client) TestConnection(ctx context.Context) error {
	body := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: string(message.RoleUser), Content: "Hi"},
		},
		Stream:    false,
		MaxTokens: 5,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Message: classifyTransportError(err), Inner: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: classifyStatus(resp.StatusCode, raw)}
	}
	return nil
}

// Model returns the configured model id.
func (c *Client) Model() string {
	return c.config.Model
}
