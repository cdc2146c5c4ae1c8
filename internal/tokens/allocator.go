package tokens

import (
	"arklore/internal/logging"
)

// Allocator computes the generation token allowance (num_predict) for an
// assembled prompt. It is a pure function over its inputs; callers own any
// logging or metrics around the result.
type Allocator struct {
	counter *Counter

	// Declared context window size (num_ctx)
	ContextWindow int

	// Tokens held back to absorb counting drift
	SafetyBuffer int

	// Bounds on the generation allowance
	MinOutput int
	MaxOutput int
}

// NewAllocator creates an allocator over the given counter and budget bounds.
func NewAllocator(counter *Counter, contextWindow, safetyBuffer, minOutput, maxOutput int) *Allocator {
	return &Allocator{
		counter:       counter,
		ContextWindow: contextWindow,
		SafetyBuffer:  safetyBuffer,
		MinOutput:     minOutput,
		MaxOutput:     maxOutput,
	}
}

// NumPredict returns the number of tokens the generator may produce for the
// given prompt. The leftover context window after the prompt and safety
// buffer is allocated to output, clamped to [MinOutput, MaxOutput]. When
// even MinOutput does not fit, a conservative floor is used instead so a
// degraded cycle still attempts generation.
func (a *Allocator) NumPredict(prompt string) int {
	promptTokens := a.counter.Count(prompt)
	return a.NumPredictForTokens(promptTokens)
}

// NumPredictForTokens is NumPredict for an already-counted prompt size.
func (a *Allocator) NumPredictForTokens(promptTokens int) int {
	available := a.ContextWindow - promptTokens - a.SafetyBuffer

	var candidate int
	if available < a.MinOutput {
		// Fallback: use the minimum, but never exceed a reasonable
		// fraction of the context window.
		candidate = min(a.MinOutput, a.ContextWindow/8)
		if candidate < 8 {
			candidate = 8
		}
		logging.Get(logging.CategoryBudget).Warn(
			"limited context space: prompt=%d window=%d available=%d, using fallback=%d",
			promptTokens, a.ContextWindow, available, candidate)
		if candidate > a.MaxOutput {
			candidate = a.MaxOutput
		}
		return candidate
	}

	candidate = available
	if candidate > a.MaxOutput {
		candidate = a.MaxOutput
	}
	if candidate < a.MinOutput {
		candidate = a.MinOutput
	}

	logging.BudgetDebug("token allocation: prompt=%d window=%d buffer=%d num_predict=%d",
		promptTokens, a.ContextWindow, a.SafetyBuffer, candidate)
	return candidate
}

// PromptBudget returns the token budget available for context retrieval
// before assembly: the window minus the safety buffer and the maximum
// generation allowance.
func (a *Allocator) PromptBudget() int {
	budget := a.ContextWindow - a.SafetyBuffer - a.MaxOutput
	if budget < 0 {
		return 0
	}
	return budget
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
