package llm

import "github.com/wrenai/wren/message"

// EventKind discriminates the StreamEvent union.
type EventKind int

const (
	// EventContent carries one incremental fragment of assistant text.
	EventContent EventKind = iota
	// EventReasoning carries one incremental fragment of reasoning text.
	// Reasoning is never merged into content.
	EventReasoning
	// EventError carries a human-readable failure message. An error is
	// terminal for the current stream.
	EventError
	// EventToolCall carries one finalized tool call requested by the model.
	EventToolCall
	// EventWebSearch signals that a web search is about to start.
	EventWebSearch
	// EventDone signals normal completion. Exactly one Done or one terminal
	// Error ends a given streaming call.
	EventDone
)

// StreamEvent is the single outward event type produced by a streaming call.
// Consumers switch on Kind; the remaining fields are populated per kind.
type StreamEvent struct {
	Kind EventKind

	// Text is the delta for Content/Reasoning and the message for Error.
	Text string

	// Status is the HTTP status code for protocol errors, 0 otherwise.
	Status int

	// ToolCall is set for EventToolCall.
	ToolCall *message.ToolCall
}

// ContentEvent wraps a content delta.
func ContentEvent(text string) StreamEvent {
	return StreamEvent{Kind: EventContent, Text: text}
}

// ReasoningEvent wraps a reasoning delta.
func ReasoningEvent(text string) StreamEvent {
	return StreamEvent{Kind: EventReasoning, Text: text}
}

// ErrorEvent wraps a terminal failure message.
func ErrorEvent(msg string) StreamEvent {
	return StreamEvent{Kind: EventError, Text: msg}
}

// ProtocolErrorEvent wraps a terminal failure tied to an HTTP status.
func ProtocolErrorEvent(msg string, status int) StreamEvent {
	return StreamEvent{Kind: EventError, Text: msg, Status: status}
}

// ToolCallEvent wraps a finalized tool call request.
func ToolCallEvent(tc message.ToolCall) StreamEvent {
	return StreamEvent{Kind: EventToolCall, ToolCall: &tc}
}

// WebSearchEvent signals the start of a web search.
func WebSearchEvent() StreamEvent {
	return StreamEvent{Kind: EventWebSearch}
}

// DoneEvent signals normal completion.
func DoneEvent() StreamEvent {
	return StreamEvent{Kind: EventDone}
}
