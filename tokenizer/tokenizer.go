// Package tokenizer estimates token counts for prompt-size reporting.
package tokenizer

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/wrenai/wren/pkg/logging"
)

// Tokenizer counts tokens with a tiktoken encoding when one can be resolved
// for the model, and a bytes/4 heuristic otherwise. The heuristic keeps the
// estimator usable for models tiktoken has never heard of.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New resolves an encoding for the given model name. It never fails; an
// unresolvable encoding falls back to the heuristic.
func New(model string) *Tokenizer {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		logging.WithComponent("tokenizer").Debug("no tiktoken encoding, using heuristic", "model", model, "error", err)
		return &Tokenizer{}
	}
	return &Tokenizer{enc: enc}
}

// Count returns the estimated number of tokens in text.
func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	if t.enc == nil {
		return len(text)/4 + 1
	}
	return len(t.enc.Encode(text, nil, nil))
}
