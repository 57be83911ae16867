package index

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/spigell/jobmatch/internal/embedding"
)

func randomMatrix(rows, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float32, rows)
	for i := range out {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = rng.Float32()*2 - 1
		}
		out[i] = embedding.Normalize(vec)
	}
	return out
}

func TestParallelSearcherMatchesFlat(t *testing.T) {
	t.Parallel()

	const dim = 24
	vectors := randomMatrix(257, dim, 7)
	// Duplicate rows force ties.
	vectors = append(vectors, vectors[3], vectors[3])

	flat := &FlatSearcher{}
	flat.Reset(dim)
	if err := flat.Add(vectors); err != nil {
		t.Fatalf("add: %v", err)
	}

	for _, workers := range []int{1, 3, 16, 1000} {
		par := NewParallelSearcher(workers)
		par.Reset(dim)
		if err := par.Add(vectors); err != nil {
			t.Fatalf("add: %v", err)
		}

		for q, query := range randomMatrix(5, dim, 11) {
			want, err := flat.Search(query, 20)
			if err != nil {
				t.Fatalf("flat search: %v", err)
			}
			got, err := par.Search(query, 20)
			if err != nil {
				t.Fatalf("parallel search: %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("workers=%d query=%d: got %d hits, want %d", workers, q, len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("workers=%d query=%d hit %d: got %+v, want %+v", workers, q, i, got[i], want[i])
				}
			}
		}
	}
}

func TestSearcherTiesKeepRowOrder(t *testing.T) {
	t.Parallel()

	s := &FlatSearcher{}
	s.Reset(2)
	if err := s.Add([][]float32{{1, 0}, {0, 1}, {1, 0}, {1, 0}}); err != nil {
		t.Fatalf("add: %v", err)
	}

	hits, err := s.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for i, row := range []int{0, 2, 3} {
		if hits[i].Row != row {
			t.Fatalf("hit %d: got row %d, want %d", i, hits[i].Row, row)
		}
	}
}

func TestSearcherDimensionChecks(t *testing.T) {
	t.Parallel()

	s := NewParallelSearcher(2)
	s.Reset(3)
	if err := s.Add([][]float32{{1, 0}}); !errors.Is(err, embedding.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch on add, got %v", err)
	}
	if _, err := s.Search([]float32{1}, 1); !errors.Is(err, embedding.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch on search, got %v", err)
	}
}

func TestNewSearcher(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "flat", "parallel"} {
		if _, err := NewSearcher(name, 0); err != nil {
			t.Fatalf("%q: unexpected error %v", name, err)
		}
	}
	if _, err := NewSearcher("faiss", 0); err == nil {
		t.Fatal("expected error for unknown searcher")
	}
}
