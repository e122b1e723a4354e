// Package session keeps the in-memory conversation history for one chat.
// Persistence of messages is the embedding application's concern, not ours.
package session

import (
	"github.com/wrenai/wren/message"
)

// Counter estimates the token cost of a piece of text.
type Counter interface {
	Count(text string) int
}

// Conversation is an ordered message history with a bounded size. Trimming
// keeps system messages and the most recent remainder.
type Conversation struct {
	messages []*message.Message
	maxSize  int
}

// New creates an empty conversation with the default size bound.
func New() *Conversation {
	return NewWithMaxSize(100)
}

// NewWithMaxSize creates an empty conversation keeping at most maxSize messages.
func NewWithMaxSize(maxSize int) *Conversation {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Conversation{
		messages: make([]*message.Message, 0),
		maxSize:  maxSize,
	}
}

// Append adds a message to the conversation, trimming when over the bound.
func (c *Conversation) Append(msg *message.Message) {
	if msg == nil {
		return
	}
	c.messages = append(c.messages, msg)

	if len(c.messages) > c.maxSize {
		systemMsgs := make([]*message.Message, 0)
		for _, m := range c.messages {
			if m.Role == message.RoleSystem {
				systemMsgs = append(systemMsgs, m)
			}
		}

		keepCount := c.maxSize - len(systemMsgs)
		if keepCount < 0 {
			keepCount = 0
		}
		recent := c.messages[len(c.messages)-keepCount:]

		rebuilt := make([]*message.Message, 0, c.maxSize)
		rebuilt = append(rebuilt, systemMsgs...)
		for _, m := range recent {
			if m.Role != message.RoleSystem {
				rebuilt = append(rebuilt, m)
			}
		}
		c.messages = rebuilt
	}
}

// Messages returns a defensive copy of the history, safe to hand to a turn
// that may be cancelled midway.
func (c *Conversation) Messages() []*message.Message {
	return message.CloneMessages(c.messages)
}

// Last returns the most recent message or nil when empty.
func (c *Conversation) Last() *message.Message {
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// Len reports the number of stored messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Clear drops every non-system message.
func (c *Conversation) Clear() {
	kept := make([]*message.Message, 0)
	for _, m := range c.messages {
		if m.Role == message.RoleSystem {
			kept = append(kept, m)
		}
	}
	c.messages = kept
}

// Tokens estimates the total token cost of the history using the counter.
func (c *Conversation) Tokens(counter Counter) int {
	if counter == nil {
		return 0
	}
	total := 0
	for _, m := range c.messages {
		total += counter.Count(m.Content)
	}
	return total
}
