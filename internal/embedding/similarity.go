package embedding

import (
	"fmt"
	"math"
)

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1; a zero-magnitude vector compares as 0
// against anything.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, aMag, bMag float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		aMag += float64(a[i]) * float64(a[i])
		bMag += float64(b[i]) * float64(b[i])
	}
	if aMag == 0 || bMag == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag)), nil
}

// Explanation breaks a similarity comparison into its components, used for
// tuning the relevance threshold.
type Explanation struct {
	Dimensions     int     `json:"dimensions"`
	Magnitude1     float64 `json:"magnitude_1"`
	Magnitude2     float64 `json:"magnitude_2"`
	DotProduct     float64 `json:"dot_product"`
	Cosine         float64 `json:"cosine_similarity"`
	Interpretation string  `json:"interpretation"`
}

// Explain computes the full similarity breakdown between two vectors.
func Explain(a, b []float32) (Explanation, error) {
	if len(a) != len(b) {
		return Explanation{}, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, aMag, bMag float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		aMag += float64(a[i]) * float64(a[i])
		bMag += float64(b[i]) * float64(b[i])
	}
	aMag = math.Sqrt(aMag)
	bMag = math.Sqrt(bMag)

	cosine := 0.0
	if aMag > 0 && bMag > 0 {
		cosine = dot / (aMag * bMag)
	}

	return Explanation{
		Dimensions:     len(a),
		Magnitude1:     aMag,
		Magnitude2:     bMag,
		DotProduct:     dot,
		Cosine:         cosine,
		Interpretation: Interpret(cosine),
	}, nil
}

// Interpret maps a cosine similarity score to a qualitative bucket.
func Interpret(similarity float64) string {
	switch {
	case similarity >= 0.9:
		return "nearly identical semantic meaning"
	case similarity >= 0.8:
		return "very high semantic similarity"
	case similarity >= 0.7:
		return "high semantic similarity"
	case similarity >= 0.6:
		return "moderate semantic similarity"
	case similarity >= 0.5:
		return "some semantic similarity"
	case similarity >= 0.3:
		return "low semantic similarity"
	default:
		return "very low or no semantic similarity"
	}
}
