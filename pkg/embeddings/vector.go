// Package embeddings provides vector math for embeddings (normalization, cosine similarity, hashing).
package embeddings

import (
	"encoding/hex"
	"math"
)

// NormalizeL2 scales vector in place to unit length. A zero vector is left untouched.
func NormalizeL2(vector []float32) {
	var sumSquares float64

	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	if sumSquares == 0 {
		return
	}

	magnitude := math.Sqrt(sumSquares)

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}

// CosineSimilarity returns the cosine of the angle between a and b, clamped to [0, 1].
// Negative similarity is reported as 0 so scores can be used directly as thresholds.
// Vectors of different length or zero magnitude have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64

	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	return min(max(sim, 0), 1)
}

// semanticHashBits is the number of sign bits kept by SemanticHash.
const semanticHashBits = 64

// SemanticHash folds the sign pattern of the vector into a 64-bit hex string.
// Dimension i votes into bit i mod 64, so near-identical vectors usually share a hash.
// It is a diagnostic bucket key only: equivalence is always decided by cosine similarity.
func SemanticHash(vector []float32) string {
	var sums [semanticHashBits]float64

	for i, v := range vector {
		sums[i%semanticHashBits] += float64(v)
	}

	var out [semanticHashBits / 8]byte

	for bit, s := range sums {
		if s > 0 {
			out[bit/8] |= 1 << (bit % 8)
		}
	}

	return hex.EncodeToString(out[:])
}
