// Package ranking reduces retrieved candidates to a scored, explained shortlist.
package ranking

import (
	"context"
	"slices"
	"time"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/catalog"
	"github.com/spigell/jobmatch/internal/index"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/profile"
	"go.uber.org/zap"
)

// Path records which ranking strategy produced an Outcome.
type Path string

const (
	PathNone      Path = "none"
	PathHeuristic Path = "heuristic"
	PathModel     Path = "model"
)

const (
	defaultTimeout      = 20 * time.Second
	defaultMaxLogLength = 200
	maxReasonWords      = 25
)

// Result has the same shape whichever path produced it.
type Result struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Location    string   `json:"location"`
	Type        string   `json:"type"`
	SkillsList  []string `json:"skills_list"`
	Description string   `json:"description"`
	ApplyURL    string   `json:"apply_url"`
	ApplyBy     string   `json:"apply_by"`
	Score       float64  `json:"score"`
	Reason      string   `json:"reason"`
}

type Outcome struct {
	Results []Result `json:"results"`
	Path    Path     `json:"path"`
}

type Options struct {
	// Timeout bounds a single model call including retries.
	Timeout      time.Duration
	MaxLogLength int
}

type Engine struct {
	generator ai.Generator
	timeout   time.Duration
	maxLogLen int
	logger    *zap.Logger
}

// New returns an engine. A nil generator selects heuristic-only ranking.
func New(generator ai.Generator, log *zap.Logger, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}
	if generator != nil {
		log = logger.WithCommonFields(log, generator.Provider(), generator.Model())
	} else if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		generator: generator,
		timeout:   opts.Timeout,
		maxLogLen: opts.MaxLogLength,
		logger:    log,
	}
}

// ModelEnabled reports whether Rank will try the language model first.
func (e *Engine) ModelEnabled() bool { return e.generator != nil }

// Rank orders candidates for p and keeps at most topN. Model failures are
// absorbed by falling back to the heuristic; the only error is a done ctx.
func (e *Engine) Rank(ctx context.Context, p profile.UserProfile, candidates []index.Candidate, topN int) (Outcome, error) {
	if len(candidates) == 0 || topN <= 0 {
		return Outcome{Results: []Result{}, Path: PathNone}, nil
	}

	if e.generator != nil {
		results, err := e.rankWithModel(ctx, p, candidates)
		if err == nil {
			return Outcome{Results: truncate(results, topN), Path: PathModel}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		e.logger.Warn("model ranking failed, using heuristic", zap.Error(err))
	}

	return Outcome{Results: truncate(Heuristic(p, candidates), topN), Path: PathHeuristic}, nil
}

func hydrate(job catalog.JobRecord, score float64, reason string) Result {
	return Result{
		ID:          job.ID,
		Title:       job.Title,
		Company:     job.Company,
		Location:    job.Location,
		Type:        job.Type,
		SkillsList:  slices.Clone(job.SkillsList),
		Description: job.Description,
		ApplyURL:    job.ApplyURL,
		ApplyBy:     job.ApplyBy,
		Score:       score,
		Reason:      reason,
	}
}

// sortByScore orders results by descending score, keeping input order on ties.
func sortByScore(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
}

func truncate(results []Result, n int) []Result {
	if len(results) > n {
		return results[:n:n]
	}
	return results
}
