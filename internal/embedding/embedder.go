// Package embedding maps text to fixed-dimension vectors.
package embedding

import (
	"context"
	"math"
)

// Embedder converts free text into a vector. Every call on one Embedder returns
// vectors of the same dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by backends that can embed many texts per call.
// The returned slice is aligned with texts.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Named is implemented by embedders that can identify their model.
type Named interface {
	Name() string
}

// ModelName returns the model identifier of e, or "unknown".
func ModelName(e Embedder) string {
	if n, ok := e.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return "unknown"
}

// Normalize returns a unit-length copy of v. A zero vector is returned as a zero copy.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// SquaredL2 returns the squared Euclidean distance between a and b, which must have equal length.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
