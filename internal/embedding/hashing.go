package embedding

import (
	"context"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const DefaultHashDimension = 128

// Hashing is a bag-of-tokens sketch: every whitespace token increments bucket
// hash(token) mod dim. Collisions are accepted. Buckets must not change
// between processes: persisted indexes are reused across runs.
type Hashing struct {
	dim int
}

func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &Hashing{dim: dim}
}

func (h *Hashing) Name() string { return "hash" }

func (h *Hashing) Dimension() int { return h.dim }

func (h *Hashing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embedOne(text)
	}
	return out, nil
}

func (h *Hashing) embedOne(text string) []float32 {
	vec := make([]float32, h.dim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		vec[xxhash.Sum64String(token)%uint64(h.dim)]++
	}
	return Normalize(vec)
}
