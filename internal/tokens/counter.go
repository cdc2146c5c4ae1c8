// Package tokens provides token counting and generation-budget allocation.
// The counter prefers an exact tiktoken encoding and degrades to a
// character heuristic; counting must never fail, because every budget
// decision downstream depends on it.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"arklore/internal/logging"
)

// Counter estimates token counts for prompt text.
type Counter struct {
	encoder *tiktoken.Tiktoken

	fallbackOnce sync.Once
}

// NewCounter creates a counter for the given tokenizer model. When the
// encoding cannot be loaded the counter silently falls back to the
// ~4 characters per token heuristic.
func NewCounter(tokenizerModel string) *Counter {
	c := &Counter{}

	enc, err := tiktoken.EncodingForModel(tokenizerModel)
	if err != nil {
		logging.Get(logging.CategoryBudget).Warn(
			"failed to load tiktoken encoding for %q: %v; using character estimation", tokenizerModel, err)
		return c
	}
	c.encoder = enc
	logging.Budget("token counter using tiktoken encoding for model %q", tokenizerModel)
	return c
}

// Count returns the number of tokens in text. Empty text counts as 0; any
// non-empty text counts as at least 1.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}

	if c.encoder != nil {
		if n := c.countExact(text); n > 0 {
			return n
		}
	}

	// Conservative estimate of ~4 characters per token.
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// countExact runs the tiktoken encoder, recovering from any internal panic
// so a malformed input can never take down a budget computation.
func (c *Counter) countExact(text string) (n int) {
	defer func() {
		if r := recover(); r != nil {
			c.fallbackOnce.Do(func() {
				logging.Get(logging.CategoryBudget).Warn("tiktoken encoding panicked: %v; using character estimation", r)
			})
			n = 0
		}
	}()
	return len(c.encoder.Encode(text, nil, nil))
}

// Exact reports whether the counter is backed by a real tokenizer rather
// than the character heuristic.
func (c *Counter) Exact() bool {
	return c.encoder != nil
}
