// Package embedding turns text into fixed-dimension, L2-normalized vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// normEpsilon guards normalization of all-zero vectors (empty text).
const normEpsilon = 1e-9

var (
	ErrBackendUnavailable = errors.New("embedding backend unavailable")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
)

// Embedder converts a batch of texts into a matrix of shape (len(texts), Dimension()).
// Returned vectors are L2-normalized so that a dot product equals cosine similarity.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Normalize scales vec in place to unit length and returns it.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum) + normEpsilon
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// CheckDimension verifies every vector has exactly dim components.
func CheckDimension(vectors [][]float32, dim int) error {
	for i, vec := range vectors {
		if len(vec) != dim {
			return fmt.Errorf("%w: vector %d has %d components, expected %d", ErrDimensionMismatch, i, len(vec), dim)
		}
	}
	return nil
}

// Dot returns the inner product of two equally sized vectors.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func batches(n, size int) [][2]int {
	if size <= 0 {
		size = n
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
