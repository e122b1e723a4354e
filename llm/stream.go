package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/wrenai/wren/message"
)

const (
	ssePrefix   = "data: "
	sseSentinel = "[DONE]"
)

// chatCompletionChunk is the top-level SSE payload for streaming responses.
type chatCompletionChunk struct {
	ID      string        `json:"id"`
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"` // nil until the final chunk
}

type chunkDelta struct {
	Role             string          `json:"role,omitempty"`
	Content          string          `json:"content,omitempty"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	ToolCalls        []toolCallDelta `json:"tool_calls,omitempty"`
}

// toolCallDelta is one fragment of a tool call. The id and name may arrive in
// a later chunk than the index, and arguments arrive as string fragments that
// must be concatenated in order.
type toolCallDelta struct {
	Index    int           `json:"index"`
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	Function functionDelta `json:"function"`
}

type functionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// readStream consumes the SSE line sequence of one streaming call.
// emit reports false when the consumer is gone; reading stops immediately.
func (c *Client) readStream(body io.Reader, emit func(StreamEvent) bool) {
	agg := newToolCallAggregator()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, ssePrefix) {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, ssePrefix))
		if payload == sseSentinel {
			emit(DoneEvent())
			return
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Tolerate noisy or partial frames: skip the line, keep reading.
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			if !emit(ContentEvent(choice.Delta.Content)) {
				return
			}
		}
		if choice.Delta.ReasoningContent != "" {
			if !emit(ReasoningEvent(choice.Delta.ReasoningContent)) {
				return
			}
		}
		agg.apply(choice.Delta.ToolCalls)

		if choice.FinishReason == nil || *choice.FinishReason == "" {
			continue
		}
		if *choice.FinishReason == "tool_calls" {
			agg.finalize(emit)
			return
		}
		emit(DoneEvent())
		return
	}

	if err := scanner.Err(); err != nil {
		emit(ErrorEvent(classifyTransportError(err)))
		return
	}
	// Stream ended without a sentinel or finish reason; treat as complete.
	emit(DoneEvent())
}

// toolCallAggregator reassembles tool calls from fragments spread across many
// chunks. State is scoped to one streaming call and keyed by the integer
// index supplied by the protocol; ids may arrive after other fields.
type toolCallAggregator struct {
	seen  map[int]struct{}
	ids   map[int]string
	names map[int]string
	args  map[int]*strings.Builder
}

func newToolCallAggregator() *toolCallAggregator {
	return &toolCallAggregator{
		seen:  make(map[int]struct{}),
		ids:   make(map[int]string),
		names: make(map[int]string),
		args:  make(map[int]*strings.Builder),
	}
}

func (a *toolCallAggregator) apply(deltas []toolCallDelta) {
	for _, d := range deltas {
		a.seen[d.Index] = struct{}{}
		if d.ID != "" {
			a.ids[d.Index] = d.ID
		}
		if d.Function.Name != "" {
			a.names[d.Index] = d.Function.Name
		}
		if d.Function.Arguments != "" {
			buf, ok := a.args[d.Index]
			if !ok {
				buf = &strings.Builder{}
				a.args[d.Index] = buf
			}
			// Argument fragments are concatenated, never replaced; the
			// accumulated string is only valid JSON once complete.
			buf.WriteString(d.Function.Arguments)
		}
	}
}

// finalize turns the accumulated fragments into tool call events,
// iterating indices in ascending order. Entries missing an id or name are
// reported once, after every complete entry has been emitted.
func (a *toolCallAggregator) finalize(emit func(StreamEvent) bool) {
	if len(a.seen) == 0 {
		emit(ErrorEvent(msgNoToolCalls))
		return
	}

	indices := make([]int, 0, len(a.seen))
	for idx := range a.seen {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	partial := false
	for _, idx := range indices {
		id := a.ids[idx]
		name := a.names[idx]
		if id == "" || name == "" {
			partial = true
			continue
		}
		arguments := "{}"
		if buf, ok := a.args[idx]; ok && buf.Len() > 0 {
			arguments = buf.String()
		}
		if !emit(ToolCallEvent(message.ToolCall{ID: id, Name: name, Arguments: arguments})) {
			return
		}
	}
	if partial {
		emit(ErrorEvent(msgPartialToolCalls))
	}
}
