package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wrenai/wren/llm"
	"github.com/wrenai/wren/message"
	"github.com/wrenai/wren/pkg/telemetry"
	"github.com/wrenai/wren/search"
	"go.opentelemetry.io/otel/attribute"
)

// Run executes one conversational turn over the supplied prior messages and
// returns an ordered event channel. The channel closes after the terminal
// Done or Error event. The caller's slice is never mutated; a cancelled turn
// leaves no trace in it.
func (a *Agent) Run(ctx context.Context, history []*message.Message) <-chan llm.StreamEvent {
	events := make(chan llm.StreamEvent)
	go func() {
		defer close(events)
		emit := func(ev llm.StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		a.run(ctx, history, emit)
	}()
	return events
}

// roundOutcome captures what one streaming round produced.
type roundOutcome struct {
	text      strings.Builder
	toolCalls []message.ToolCall
	errored   bool
	cancelled bool
}

func (a *Agent) run(ctx context.Context, history []*message.Message, emit func(llm.StreamEvent) bool) {
	msgs := message.CloneMessages(history)
	if a.systemPrompt != "" && !hasSystemMessage(msgs) {
		msgs = append([]*message.Message{message.New(message.RoleSystem, a.systemPrompt)}, msgs...)
	}
	tools := []map[string]any{llm.WebSearchTool()}

	for round := 0; round < a.maxRounds; round++ {
		roundCtx, span := a.tracer.Start(ctx, "agent.round")
		span.SetAttributes(attribute.Int("round", round), attribute.Int("messages", len(msgs)))

		outcome := a.streamRound(roundCtx, msgs, tools, emit)
		switch {
		case outcome.cancelled:
			telemetry.End(span, roundCtx.Err())
			return
		case outcome.errored:
			// The error event has already been relayed; the whole loop stops.
			telemetry.End(span, fmt.Errorf("round %d failed", round))
			return
		case len(outcome.toolCalls) == 0:
			telemetry.End(span, nil)
			emit(llm.DoneEvent())
			return
		}

		msgs = append(msgs, message.NewToolCallMessage(outcome.text.String(), outcome.toolCalls))

		ok, aborted := a.executeToolCalls(roundCtx, outcome.toolCalls, &msgs, emit)
		telemetry.End(span, nil)
		if aborted {
			return
		}
		if !ok {
			return
		}
	}

	// The round cap is enforced silently: exhausting it ends the turn with a
	// bare Done, indistinguishable from natural resolution.
	a.logger.Debug("round cap reached", "rounds", a.maxRounds)
	emit(llm.DoneEvent())
}

// streamRound runs one streaming call, relaying content/reasoning/error
// events immediately and collecting tool calls without relaying them.
func (a *Agent) streamRound(ctx context.Context, msgs []*message.Message, tools []map[string]any, emit func(llm.StreamEvent) bool) *roundOutcome {
	outcome := &roundOutcome{}
	for ev := range a.provider.ChatStream(ctx, msgs, tools) {
		switch ev.Kind {
		case llm.EventContent:
			outcome.text.WriteString(ev.Text)
			if !emit(ev) {
				outcome.cancelled = true
				return outcome
			}
		case llm.EventReasoning:
			if !emit(ev) {
				outcome.cancelled = true
				return outcome
			}
		case llm.EventError:
			outcome.errored = true
			if !emit(ev) {
				outcome.cancelled = true
			}
			return outcome
		case llm.EventToolCall:
			if ev.ToolCall != nil {
				outcome.toolCalls = append(outcome.toolCalls, *ev.ToolCall)
			}
		case llm.EventDone:
			// Swallowed here; the loop emits the single terminal Done itself.
		}
	}
	if ctx.Err() != nil {
		outcome.cancelled = true
	}
	return outcome
}

// executeToolCalls runs the round's web searches strictly in order, appending
// one tool result message per resolved call. Returns ok=false on cancellation
// and aborted=true when a search failed and the loop must stop.
func (a *Agent) executeToolCalls(ctx context.Context, calls []message.ToolCall, msgs *[]*message.Message, emit func(llm.StreamEvent) bool) (ok, aborted bool) {
	for _, call := range calls {
		if call.Name != "web_search" {
			a.logger.Warn("ignoring unknown tool call", "tool", call.Name)
			continue
		}
		if ctx.Err() != nil {
			return false, false
		}

		query := search.TruncateQuery(extractQuery(call.Arguments))
		if !emit(llm.WebSearchEvent()) {
			return false, false
		}

		searchCtx, span := a.tracer.Start(ctx, "agent.web_search")
		span.SetAttributes(attribute.Int("query_len", len(query)))
		result, err := a.searcher.Search(searchCtx, query)
		telemetry.End(span, err)
		if err != nil {
			a.logger.Warn("web search failed", "error", err)
			emit(llm.ErrorEvent(fmt.Sprintf("Web search failed: %v", err)))
			return false, true
		}
		if ctx.Err() != nil {
			// The turn was cancelled while the search was in flight; the
			// result must not reach the discarded message list.
			return false, false
		}

		*msgs = append(*msgs, message.NewToolResult(call.ID, result))
	}
	return true, false
}

// extractQuery pulls the query string out of the JSON-encoded arguments,
// falling back to the raw argument text when parsing fails or the value is
// blank.
func extractQuery(arguments string) string {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err == nil {
		if q := strings.TrimSpace(args.Query); q != "" {
			return q
		}
	}
	return arguments
}

func hasSystemMessage(msgs []*message.Message) bool {
	for _, m := range msgs {
		if m != nil && m.Role == message.RoleSystem {
			return true
		}
	}
	return false
}
