// Package mock provides a deterministic offline embedder for tests.
package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/karolinaw/hippocampus/internal/embedder"
)

// Embedder generates unit-length vectors seeded by an FNV hash of the
// input, so identical texts always embed identically and distinct texts are
// effectively orthogonal.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with the production dimension count.
func New() *Embedder {
	return &Embedder{dimensions: 384}
}

// Embed produces a deterministic pseudo-random unit vector from text.
func (m *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return embedder.Normalize(vec), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int { return m.dimensions }
