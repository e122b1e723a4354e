package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wrenai/wren/llm"
	"github.com/wrenai/wren/message"
)

// fakeProvider replays one scripted event sequence per round and records the
// message list of every call. The last script repeats when rounds run past it.
type fakeProvider struct {
	rounds [][]llm.StreamEvent
	calls  [][]*message.Message
}

func (f *fakeProvider) ChatStream(ctx context.Context, msgs []*message.Message, tools []map[string]any) <-chan llm.StreamEvent {
	f.calls = append(f.calls, message.CloneMessages(msgs))
	idx := len(f.calls) - 1
	if idx >= len(f.rounds) {
		idx = len(f.rounds) - 1
	}
	script := f.rounds[idx]

	ch := make(chan llm.StreamEvent)
	go func() {
		defer close(ch)
		for _, ev := range script {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// fakeSearcher records queries and answers from a canned function.
type fakeSearcher struct {
	queries []string
	respond func(query string) (string, error)
}

func (f *fakeSearcher) Search(_ context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	if f.respond == nil {
		return "results for " + query, nil
	}
	return f.respond(query)
}

func newTestAgent(p Provider, s *fakeSearcher, opts ...Option) *Agent {
	base := []Option{WithProvider(p), WithSearcher(s)}
	return New(append(base, opts...)...)
}

func userTurn(text string) []*message.Message {
	return []*message.Message{message.New(message.RoleUser, text)}
}

func collect(ch <-chan llm.StreamEvent) []llm.StreamEvent {
	var events []llm.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func countKind(events []llm.StreamEvent, kind llm.EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func toolCallEvent(id, name, args string) llm.StreamEvent {
	return llm.ToolCallEvent(message.ToolCall{ID: id, Name: name, Arguments: args})
}

func TestRunRelaysContentAndEmitsSingleDone(t *testing.T) {
	provider := &fakeProvider{rounds: [][]llm.StreamEvent{{
		llm.ContentEvent("Hello"),
		llm.ContentEvent("!"),
		llm.DoneEvent(),
	}}}
	searcher := &fakeSearcher{}

	events := collect(newTestAgent(provider, searcher).Run(context.Background(), userTurn("hi")))

	var text strings.Builder
	for _, ev := range events {
		if ev.Kind == llm.EventContent {
			text.WriteString(ev.Text)
		}
	}
	if text.String() != "Hello!" {
		t.Errorf("expected relayed content %q, got %q", "Hello!", text.String())
	}
	if n := countKind(events, llm.EventDone); n != 1 {
		t.Errorf("expected exactly one Done, got %d", n)
	}
	if len(provider.calls) != 1 {
		t.Errorf("expected one round, got %d", len(provider.calls))
	}
	if len(searcher.queries) != 0 {
		t.Errorf("searcher must not run without tool calls")
	}
}

func TestToolRoundFeedsResultsIntoNextRound(t *testing.T) {
	provider := &fakeProvider{rounds: [][]llm.StreamEvent{
		{
			llm.ContentEvent("Let me check."),
			toolCallEvent("call-1", "web_search", `{"query":"go release date"}`),
		},
		{
			llm.ContentEvent("Found it."),
			llm.DoneEvent(),
		},
	}}
	searcher := &fakeSearcher{}

	events := collect(newTestAgent(provider, searcher).Run(context.Background(), userTurn("when was Go released?")))

	if n := countKind(events, llm.EventWebSearch); n != 1 {
		t.Fatalf("expected one WebSearchStarted, got %d", n)
	}
	if n := countKind(events, llm.EventToolCall); n != 0 {
		t.Errorf("tool call requests must not be relayed to the caller, got %d", n)
	}
	if n := countKind(events, llm.EventDone); n != 1 {
		t.Errorf("expected exactly one Done, got %d", n)
	}

	if len(searcher.queries) != 1 || searcher.queries[0] != "go release date" {
		t.Fatalf("expected extracted query, got %v", searcher.queries)
	}

	if len(provider.calls) != 2 {
		t.Fatalf("expected two rounds, got %d", len(provider.calls))
	}
	second := provider.calls[1]
	last, prev := second[len(second)-1], second[len(second)-2]

	if prev.Role != message.RoleAssistant {
		t.Fatalf("expected assistant message before tool result, got %s", prev.Role)
	}
	if prev.Content != "Let me check." {
		t.Errorf("assistant message must carry the round text, got %q", prev.Content)
	}
	if len(prev.ToolCalls) != 1 || prev.ToolCalls[0].ID != "call-1" {
		t.Errorf("assistant message must carry the tool calls, got %+v", prev.ToolCalls)
	}
	if last.Role != message.RoleTool {
		t.Fatalf("expected tool result message last, got %s", last.Role)
	}
	if last.ToolCallID != "call-1" {
		t.Errorf("tool result must reference the originating call, got %q", last.ToolCallID)
	}
	if last.Content != "results for go release date" {
		t.Errorf("tool result must carry the search output, got %q", last.Content)
	}
}

func TestMultipleToolCallsResolvedSequentially(t *testing.T) {
	provider := &fakeProvider{rounds: [][]llm.StreamEvent{
		{
			toolCallEvent("a", "web_search", `{"query":"first"}`),
			toolCallEvent("b", "web_search", `{"query":"second"}`),
		},
		{llm.DoneEvent()},
	}}
	searcher := &fakeSearcher{}

	collect(newTestAgent(provider, searcher).Run(context.Background(), userTurn("two things")))

	if len(searcher.queries) != 2 || searcher.queries[0] != "first" || searcher.queries[1] != "second" {
		t.Fatalf("expected in-order sequential searches, got %v", searcher.queries)
	}

	second := provider.calls[1]
	var toolMsgs []*message.Message
	for _, m := range second {
		if m.Role == message.RoleTool {
			toolMsgs = append(toolMsgs, m)
		}
	}
	if len(toolMsgs) != 2 {
		t.Fatalf("expected one tool message per resolved call, got %d", len(toolMsgs))
	}
	if toolMsgs[0].ToolCallID != "a" || toolMsgs[1].ToolCallID != "b" {
		t.Errorf("tool messages must match call ids in order, got %q, %q", toolMsgs[0].ToolCallID, toolMsgs[1].ToolCallID)
	}
}

func TestSearcherFailureAbortsLoop(t *testing.T) {
	provider := &fakeProvider{rounds: [][]llm.StreamEvent{{
		toolCallEvent("a", "web_search", `{"query":"x"}`),
		toolCallEvent("b", "web_search", `{"query":"y"}`),
	}}}
	searcher := &fakeSearcher{respond: func(string) (string, error) {
		return "", errors.New("search backend down")
	}}

	events := collect(newTestAgent(provider, searcher).Run(context.Background(), userTurn("hi")))

	if n := countKind(events, llm.EventWebSearch); n != 1 {
		t.Errorf("expected exactly one WebSearchStarted, got %d", n)
	}
	if n := countKind(events, llm.EventError); n != 1 {
		t.Errorf("expected exactly one Error, got %d", n)
	}
	if n := countKind(events, llm.EventDone); n != 0 {
		t.Errorf("a failed loop must not emit Done, got %d", n)
	}
	if len(provider.calls) != 1 {
		t.Errorf("expected no further rounds after failure, got %d", len(provider.calls))
	}
	if len(searcher.queries) != 1 {
		t.Errorf("remaining tool calls must not run after a failure, got %d", len(searcher.queries))
	}
}

func TestStreamErrorAbortsWithoutDone(t *testing.T) {
	provider := &fakeProvider{rounds: [][]llm.StreamEvent{{
		llm.ContentEvent("partial"),
		llm.ProtocolErrorEvent("Rate limit exceeded. Please try again later.", 429),
	}}}
	searcher := &fakeSearcher{}

	events := collect(newTestAgent(provider, searcher).Run(context.Background(), userTurn("hi")))

	if n := countKind(events, llm.EventError); n != 1 {
		t.Errorf("expected the error relayed once, got %d", n)
	}
	if n := countKind(events, llm.EventDone); n != 0 {
		t.Errorf("no Done after a terminal error, got %d", n)
	}
	if len(provider.calls) != 1 {
		t.Errorf("expected no further rounds, got %d", len(provider.calls))
	}
}

func TestRoundCapEndsWithBareDone(t *testing.T) {
	// Every round requests another search; the loop must stop at the cap and
	// still end with a single Done.
	provider := &fakeProvider{rounds: [][]llm.StreamEvent{{
		toolCallEvent("a", "web_search", `{"query":"again"}`),
	}}}
	searcher := &fakeSearcher{}

	events := collect(newTestAgent(provider, searcher, WithMaxRounds(3)).Run(context.Background(), userTurn("loop")))

	if len(provider.calls) != 3 {
		t.Errorf("expected exactly 3 rounds, got %d", len(provider.calls))
	}
	if n := countKind(events, llm.EventWebSearch); n != 3 {
		t.Errorf("expected 3 searches, got %d", n)
	}
	if n := countKind(events, llm.EventDone); n != 1 {
		t.Errorf("expected a single terminal Done, got %d", n)
	}
	if n := countKind(events, llm.EventError); n != 0 {
		t.Errorf("cap exhaustion is silent, got %d errors", n)
	}
}

func TestQueryFallsBackToRawArguments(t *testing.T) {
	cases := []struct {
		name string
		args string
		want string
	}{
		{"invalid json", `not json at all`, `not json at all`},
		{"blank query", `{"query":"   "}`, `{"query":"   "}`},
		{"missing query", `{"q":"x"}`, `{"q":"x"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeProvider{rounds: [][]llm.StreamEvent{
				{toolCallEvent("a", "web_search", tc.args)},
				{llm.DoneEvent()},
			}}
			searcher := &fakeSearcher{}
			collect(newTestAgent(provider, searcher).Run(context.Background(), userTurn("hi")))

			if len(searcher.queries) != 1 || searcher.queries[0] != tc.want {
				t.Errorf("expected query %q, got %v", tc.want, searcher.queries)
			}
		})
	}
}

func TestLongQueryTruncated(t *testing.T) {
	long := strings.Repeat("q", 1000)
	provider := &fakeProvider{rounds: [][]llm.StreamEvent{
		{toolCallEvent("a", "web_search", fmt.Sprintf(`{"query":%q}`, long))},
		{llm.DoneEvent()},
	}}
	searcher := &fakeSearcher{}
	collect(newTestAgent(provider, searcher).Run(context.Background(), userTurn("hi")))

	if len(searcher.queries) != 1 {
		t.Fatalf("expected one query, got %d", len(searcher.queries))
	}
	if got := len(searcher.queries[0]); got != 400 {
		t.Errorf("expected query truncated to 400, got %d", got)
	}
}

func TestUnknownToolCallsIgnored(t *testing.T) {
	provider := &fakeProvider{rounds: [][]llm.StreamEvent{
		{
			toolCallEvent("a", "file_delete", `{"path":"/"}`),
			toolCallEvent("b", "web_search", `{"query":"safe"}`),
		},
		{llm.DoneEvent()},
	}}
	searcher := &fakeSearcher{}
	collect(newTestAgent(provider, searcher).Run(context.Background(), userTurn("hi")))

	if len(searcher.queries) != 1 || searcher.queries[0] != "safe" {
		t.Errorf("only web_search calls may execute, got %v", searcher.queries)
	}
}

func TestCallerHistoryNotMutated(t *testing.T) {
	history := userTurn("immutable?")
	provider := &fakeProvider{rounds: [][]llm.StreamEvent{
		{toolCallEvent("a", "web_search", `{"query":"x"}`)},
		{llm.DoneEvent()},
	}}
	collect(newTestAgent(provider, &fakeSearcher{}).Run(context.Background(), history))

	if len(history) != 1 {
		t.Fatalf("caller history grew to %d messages", len(history))
	}
	if history[0].Content != "immutable?" {
		t.Errorf("caller history message changed: %q", history[0].Content)
	}
}

func TestSystemPromptPrependedOnce(t *testing.T) {
	provider := &fakeProvider{rounds: [][]llm.StreamEvent{{llm.DoneEvent()}}}
	ag := newTestAgent(provider, &fakeSearcher{}, WithSystemPrompt("be brief"))

	collect(ag.Run(context.Background(), userTurn("hi")))
	if provider.calls[0][0].Role != message.RoleSystem {
		t.Errorf("expected system message first, got %s", provider.calls[0][0].Role)
	}

	withSystem := []*message.Message{
		message.New(message.RoleSystem, "existing"),
		message.New(message.RoleUser, "hi"),
	}
	collect(ag.Run(context.Background(), withSystem))
	second := provider.calls[1]
	systems := 0
	for _, m := range second {
		if m.Role == message.RoleSystem {
			systems++
		}
	}
	if systems != 1 {
		t.Errorf("expected existing system message preserved without duplication, got %d", systems)
	}
}

func TestCancelledTurnClosesChannel(t *testing.T) {
	provider := &fakeProvider{rounds: [][]llm.StreamEvent{{
		llm.ContentEvent("a"),
		llm.ContentEvent("b"),
		llm.DoneEvent(),
	}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := collect(newTestAgent(provider, &fakeSearcher{}).Run(ctx, userTurn("hi")))
	if n := countKind(events, llm.EventDone); n != 0 {
		t.Errorf("a cancelled turn must not report completion, got %d Done", n)
	}
}
