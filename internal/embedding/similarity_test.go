package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical vectors", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"opposite vectors", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"zero vector compares as zero", []float32{0, 0, 0}, []float32{1, 2, 3}, 0.0},
		{"both zero vectors", []float32{0, 0}, []float32{0, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, sim, 1e-9)
		})
	}

	t.Run("dimension mismatch errors", func(t *testing.T) {
		_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
		assert.Error(t, err)
	})
}

func TestExplain(t *testing.T) {
	t.Run("reports full breakdown", func(t *testing.T) {
		expl, err := Explain([]float32{3, 4}, []float32{3, 4})
		require.NoError(t, err)

		assert.Equal(t, 2, expl.Dimensions)
		assert.InDelta(t, 5.0, expl.Magnitude1, 1e-9)
		assert.InDelta(t, 5.0, expl.Magnitude2, 1e-9)
		assert.InDelta(t, 25.0, expl.DotProduct, 1e-9)
		assert.InDelta(t, 1.0, expl.Cosine, 1e-9)
		assert.Equal(t, "nearly identical semantic meaning", expl.Interpretation)
	})

	t.Run("zero vector yields zero cosine", func(t *testing.T) {
		expl, err := Explain([]float32{0, 0}, []float32{1, 1})
		require.NoError(t, err)
		assert.Zero(t, expl.Cosine)
		assert.False(t, math.IsNaN(expl.Cosine))
	})

	t.Run("dimension mismatch errors", func(t *testing.T) {
		_, err := Explain([]float32{1}, []float32{1, 2})
		assert.Error(t, err)
	})
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		similarity float64
		expected   string
	}{
		{0.95, "nearly identical semantic meaning"},
		{0.9, "nearly identical semantic meaning"},
		{0.85, "very high semantic similarity"},
		{0.75, "high semantic similarity"},
		{0.65, "moderate semantic similarity"},
		{0.55, "some semantic similarity"},
		{0.4, "low semantic similarity"},
		{0.1, "very low or no semantic similarity"},
		{-0.5, "very low or no semantic similarity"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, Interpret(tt.similarity))
		})
	}
}
