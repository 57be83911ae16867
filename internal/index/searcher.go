package index

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/spigell/jobmatch/internal/config"
	"github.com/spigell/jobmatch/internal/embedding"
	"golang.org/x/sync/errgroup"
)

// Hit is a matrix row and its inner product with the query.
type Hit struct {
	Row   int
	Score float64
}

// Searcher performs inner-product top-k search over pre-normalized vectors.
// Implementations must rank identically: scores descending, ties by row.
type Searcher interface {
	Name() string
	Reset(dim int)
	Add(vectors [][]float32) error
	Search(query []float32, k int) ([]Hit, error)
}

// NewSearcher returns the searcher registered under name.
func NewSearcher(name string, workers int) (Searcher, error) {
	switch name {
	case "", config.SearcherFlat:
		return &FlatSearcher{}, nil
	case config.SearcherParallel:
		return NewParallelSearcher(workers), nil
	default:
		return nil, fmt.Errorf("unknown searcher %q", name)
	}
}

type matrix struct {
	dim  int
	rows [][]float32
}

func (m *matrix) Reset(dim int) {
	m.dim = dim
	m.rows = nil
}

func (m *matrix) Add(vectors [][]float32) error {
	if err := embedding.CheckDimension(vectors, m.dim); err != nil {
		return err
	}
	m.rows = append(m.rows, vectors...)
	return nil
}

func (m *matrix) checkQuery(query []float32) error {
	if len(query) != m.dim {
		return fmt.Errorf("%w: query has %d components, index has %d", embedding.ErrDimensionMismatch, len(query), m.dim)
	}
	return nil
}

// FlatSearcher scans every row.
type FlatSearcher struct {
	matrix
}

func (f *FlatSearcher) Name() string { return config.SearcherFlat }

func (f *FlatSearcher) Search(query []float32, k int) ([]Hit, error) {
	if err := f.checkQuery(query); err != nil {
		return nil, err
	}

	scores := make([]float64, len(f.rows))
	for i, row := range f.rows {
		scores[i] = embedding.Dot(query, row)
	}

	return topK(scores, k), nil
}

// ParallelSearcher computes the same dot products as FlatSearcher, with the
// rows partitioned across workers.
type ParallelSearcher struct {
	matrix
	workers int
}

func NewParallelSearcher(workers int) *ParallelSearcher {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &ParallelSearcher{workers: workers}
}

func (p *ParallelSearcher) Name() string { return config.SearcherParallel }

func (p *ParallelSearcher) Search(query []float32, k int) ([]Hit, error) {
	if err := p.checkQuery(query); err != nil {
		return nil, err
	}

	n := len(p.rows)
	scores := make([]float64, n)

	chunk := (n + p.workers - 1) / p.workers
	if chunk == 0 {
		chunk = 1
	}

	var g errgroup.Group
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				scores[i] = embedding.Dot(query, p.rows[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return topK(scores, k), nil
}

func topK(scores []float64, k int) []Hit {
	k = min(k, len(scores))
	if k <= 0 {
		return []Hit{}
	}

	hits := make([]Hit, len(scores))
	for i, s := range scores {
		hits[i] = Hit{Row: i, Score: s}
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	return hits[:k:k]
}
