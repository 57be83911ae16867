// Package index keeps one embedding per job record and answers cosine
// similarity top-k queries. The index is persisted so it can be reused across runs.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spigell/jobmatch/internal/catalog"
	"github.com/spigell/jobmatch/internal/embedding"
	"github.com/spigell/jobmatch/internal/logger"
	"go.uber.org/zap"
)

var (
	ErrIndexNotFound       = errors.New("index artifacts not found")
	ErrIndexNotInitialized = errors.New("index not initialized")
	ErrIncompatibleIndex   = errors.New("persisted index is incompatible")
)

// Candidate is a retrieved record with its cosine similarity to the query.
type Candidate struct {
	Job   catalog.JobRecord `json:"job"`
	Score float64           `json:"score"`
}

type Stats struct {
	Records     int    `json:"records"`
	Dimension   int    `json:"dimension"`
	Embedder    string `json:"embedder"`
	Searcher    string `json:"searcher"`
	Fingerprint string `json:"fingerprint"`
	Ready       bool   `json:"ready"`
}

type Index struct {
	embedder embedding.Embedder
	searcher Searcher
	store    *Store
	logger   *zap.Logger

	// ensureMu serializes Ensure so at most one load or build runs.
	ensureMu sync.Mutex

	mu          sync.RWMutex
	records     []catalog.JobRecord
	vectors     [][]float32
	fingerprint string
	ready       bool
}

func New(embedder embedding.Embedder, searcher Searcher, store *Store, log *zap.Logger) *Index {
	if searcher == nil {
		searcher = &FlatSearcher{}
	}
	return &Index{
		embedder: embedder,
		searcher: searcher,
		store:    store,
		logger:   logger.WithEmbedder(log, embedder.Name(), embedder.Dimension()),
	}
}

// JobText is the text embedded for a record.
func JobText(r catalog.JobRecord) string {
	parts := []string{r.Title, r.Company, r.Location, r.Type, strings.Join(r.SkillsList, " "), r.Description}
	return strings.Join(parts, " ")
}

// Build embeds every record, replaces the resident index and persists it.
func (x *Index) Build(ctx context.Context, records []catalog.JobRecord) error {
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = JobText(r)
	}

	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed catalog: %w", err)
	}
	if len(vectors) != len(records) {
		return fmt.Errorf("embedder returned %d vectors for %d records", len(vectors), len(records))
	}
	if err := embedding.CheckDimension(vectors, x.embedder.Dimension()); err != nil {
		return err
	}

	if err := x.install(records, vectors, catalog.Fingerprint(records)); err != nil {
		return err
	}

	x.logger.Info("built index", zap.Int("records", len(records)), zap.String("searcher", x.searcher.Name()))

	return x.Persist()
}

// Persist writes the resident index to the store.
func (x *Index) Persist() error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if !x.ready {
		return ErrIndexNotInitialized
	}
	if x.store == nil {
		return nil
	}

	err := x.store.Save(Manifest{
		Embedder:    x.embedder.Name(),
		Dimension:   x.embedder.Dimension(),
		Fingerprint: x.fingerprint,
		Records:     x.records,
	}, x.vectors)
	if err != nil {
		return fmt.Errorf("persist index: %w", err)
	}

	x.logger.Debug("persisted index", zap.String("path", x.store.JobsPath()))
	return nil
}

// Load restores the index from the store. The persisted embedder must match
// the configured one, otherwise ErrIncompatibleIndex is returned.
func (x *Index) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if x.store == nil {
		return ErrIndexNotFound
	}

	m, vectors, err := x.store.Load()
	if err != nil {
		return err
	}
	if m.Embedder != x.embedder.Name() || m.Dimension != x.embedder.Dimension() {
		return fmt.Errorf("%w: built with %s/%d, configured %s/%d",
			ErrIncompatibleIndex, m.Embedder, m.Dimension, x.embedder.Name(), x.embedder.Dimension())
	}

	if err := x.install(m.Records, vectors, m.Fingerprint); err != nil {
		return err
	}

	x.logger.Info("loaded index", zap.Int("records", len(m.Records)), zap.String("path", x.store.JobsPath()))
	return nil
}

// Ensure makes the index resident for records, loading it when a compatible
// and current copy is persisted and building it otherwise.
func (x *Index) Ensure(ctx context.Context, records []catalog.JobRecord) error {
	x.ensureMu.Lock()
	defer x.ensureMu.Unlock()

	want := catalog.Fingerprint(records)

	x.mu.RLock()
	current := x.ready && x.fingerprint == want
	x.mu.RUnlock()
	if current {
		return nil
	}

	err := x.Load(ctx)
	switch {
	case err == nil:
		x.mu.RLock()
		stale := x.fingerprint != want
		x.mu.RUnlock()
		if !stale {
			return nil
		}
		x.logger.Info("persisted index is stale, rebuilding")
	case errors.Is(err, ErrIndexNotFound):
		x.logger.Info("no persisted index, building")
	case errors.Is(err, ErrIncompatibleIndex):
		x.logger.Warn("persisted index is incompatible, rebuilding", zap.Error(err))
	default:
		return err
	}

	if err := x.Build(ctx, records); err != nil {
		// A stale index loaded above must not stay searchable.
		x.reset()
		return err
	}
	return nil
}

// Search embeds query and returns up to k candidates by descending similarity.
func (x *Index) Search(ctx context.Context, query string, k int) ([]Candidate, error) {
	x.mu.RLock()
	ready := x.ready
	x.mu.RUnlock()
	if !ready {
		return nil, ErrIndexNotInitialized
	}

	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	hits, err := x.searcher.Search(vectors[0], k)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, len(hits))
	for i, h := range hits {
		out[i] = Candidate{Job: x.records[h.Row], Score: h.Score}
	}
	return out, nil
}

func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return Stats{
		Records:     len(x.records),
		Dimension:   x.embedder.Dimension(),
		Embedder:    x.embedder.Name(),
		Searcher:    x.searcher.Name(),
		Fingerprint: x.fingerprint,
		Ready:       x.ready,
	}
}

func (x *Index) install(records []catalog.JobRecord, vectors [][]float32, fingerprint string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.searcher.Reset(x.embedder.Dimension())
	if err := x.searcher.Add(vectors); err != nil {
		x.ready = false
		return err
	}

	x.records = records
	x.vectors = vectors
	x.fingerprint = fingerprint
	x.ready = true
	return nil
}

func (x *Index) reset() {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.searcher.Reset(x.embedder.Dimension())
	x.records = nil
	x.vectors = nil
	x.fingerprint = ""
	x.ready = false
}
