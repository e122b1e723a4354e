// Package agent drives multi-round exchanges between a streaming completion
// provider and the web-search capability.
package agent

import (
	"context"
	"log/slog"

	"github.com/wrenai/wren/llm"
	"github.com/wrenai/wren/message"
	"github.com/wrenai/wren/pkg/logging"
	"github.com/wrenai/wren/search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxRounds caps how many request/stream/response cycles one
// conversational turn may span.
const DefaultMaxRounds = 5

// Provider opens one streaming completion call. Satisfied by *llm.Client.
type Provider interface {
	ChatStream(ctx context.Context, msgs []*message.Message, tools []map[string]any) <-chan llm.StreamEvent
}

// Agent orchestrates rounds for one conversation turn at a time. It holds no
// per-turn state; concurrent turns on one Agent are independent.
type Agent struct {
	provider     Provider
	searcher     search.Searcher
	maxRounds    int
	systemPrompt string
	logger       *slog.Logger
	tracer       trace.Tracer
}

// Option is a function that configures an Agent
type Option func(*Agent)

// WithProvider sets the streaming completion provider
func WithProvider(p Provider) Option {
	return func(a *Agent) {
		a.provider = p
	}
}

// WithSearcher sets the web-search capability
func WithSearcher(s search.Searcher) Option {
	return func(a *Agent) {
		a.searcher = s
	}
}

// WithMaxRounds caps the rounds per turn
func WithMaxRounds(max int) Option {
	return func(a *Agent) {
		if max > 0 {
			a.maxRounds = max
		}
	}
}

// WithSystemPrompt sets the system prompt prepended when the caller's
// history has none
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		a.systemPrompt = prompt
	}
}

// WithLogger overrides the default component logger
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an agent with the given options
func New(opts ...Option) *Agent {
	a := &Agent{
		maxRounds: DefaultMaxRounds,
		logger:    logging.WithComponent("agent"),
		tracer:    otel.Tracer("github.com/wrenai/wren/agent"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
