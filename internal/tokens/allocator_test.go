package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heuristicCounter() *Counter {
	// Zero-value counter has no encoder, so it always uses the character
	// heuristic; tests stay deterministic without a tokenizer download.
	return &Counter{}
}

func TestCounterCount(t *testing.T) {
	c := heuristicCounter()

	t.Run("empty text counts zero", func(t *testing.T) {
		assert.Equal(t, 0, c.Count(""))
	})

	t.Run("non-empty text counts at least one", func(t *testing.T) {
		assert.Equal(t, 1, c.Count("a"))
		assert.Equal(t, 1, c.Count("abc"))
	})

	t.Run("heuristic is four characters per token", func(t *testing.T) {
		assert.Equal(t, 10, c.Count(strings.Repeat("x", 40)))
		assert.Equal(t, 25, c.Count(strings.Repeat("x", 100)))
	})

	t.Run("zero-value counter is not exact", func(t *testing.T) {
		assert.False(t, c.Exact())
	})
}

func TestAllocatorNumPredict(t *testing.T) {
	tests := []struct {
		name         string
		window       int
		buffer       int
		minOut       int
		maxOut       int
		promptTokens int
		expected     int
	}{
		{
			name:   "ample headroom caps at max output",
			window: 1000, buffer: 48, minOut: 64, maxOut: 512,
			promptTokens: 300,
			// available = 1000-300-48 = 652 >= 64, capped to 512
			expected: 512,
		},
		{
			name:   "tight headroom returns the leftover",
			window: 1000, buffer: 48, minOut: 64, maxOut: 512,
			promptTokens: 700,
			// available = 252, between min and max
			expected: 252,
		},
		{
			name:   "exhausted window falls back to the floor",
			window: 1000, buffer: 48, minOut: 64, maxOut: 512,
			promptTokens: 960,
			// available = -8 < 64, floor = max(8, min(64, 125)) = 64
			expected: 64,
		},
		{
			name:   "tiny window floors at eight",
			window: 32, buffer: 8, minOut: 64, maxOut: 512,
			promptTokens: 30,
			// floor = max(8, min(64, 4)) = 8
			expected: 8,
		},
		{
			name:   "floor never exceeds max output",
			window: 4096, buffer: 48, minOut: 600, maxOut: 128,
			promptTokens: 4000,
			// floor = max(8, min(600, 512)) = 512, clamped to maxOut
			expected: 128,
		},
		{
			name:   "available exactly min output",
			window: 1000, buffer: 48, minOut: 64, maxOut: 512,
			promptTokens: 888,
			// available = 64 == min
			expected: 64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAllocator(heuristicCounter(), tt.window, tt.buffer, tt.minOut, tt.maxOut)
			assert.Equal(t, tt.expected, a.NumPredictForTokens(tt.promptTokens))
		})
	}
}

func TestAllocatorNumPredictFromPrompt(t *testing.T) {
	a := NewAllocator(heuristicCounter(), 1000, 48, 64, 512)

	// 1200 chars -> 300 heuristic tokens -> 652 available -> capped at 512.
	prompt := strings.Repeat("x", 1200)
	assert.Equal(t, 512, a.NumPredict(prompt))
}

func TestAllocatorBoundsProperty(t *testing.T) {
	a := NewAllocator(heuristicCounter(), 2048, 48, 64, 512)

	for promptTokens := 0; promptTokens <= 3000; promptTokens += 37 {
		n := a.NumPredictForTokens(promptTokens)
		available := 2048 - promptTokens - 48
		if available >= 64 {
			require.GreaterOrEqual(t, n, 64, "prompt=%d", promptTokens)
			require.LessOrEqual(t, n, 512, "prompt=%d", promptTokens)
		} else {
			require.GreaterOrEqual(t, n, 8, "prompt=%d", promptTokens)
			require.LessOrEqual(t, n, 512, "prompt=%d", promptTokens)
		}
	}
}

func TestAllocatorPromptBudget(t *testing.T) {
	t.Run("window minus buffer and max output", func(t *testing.T) {
		a := NewAllocator(heuristicCounter(), 4096, 48, 64, 512)
		assert.Equal(t, 3536, a.PromptBudget())
	})

	t.Run("never negative", func(t *testing.T) {
		a := NewAllocator(heuristicCounter(), 100, 48, 64, 512)
		assert.Equal(t, 0, a.PromptBudget())
	})
}
