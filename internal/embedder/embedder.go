// Package embedder converts observation text into unit-length 384-dim
// vectors for semantic search.
package embedder

import (
	"context"
	"math"
)

// Embedder converts text to a vector embedding. Implementations must be
// deterministic: the same input always produces the same vector.
type Embedder interface {
	// Embed converts a single text to a unit-length embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Normalize scales vec to unit length in place and returns it. A zero
// vector is returned unchanged.
func Normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
