// Package pipeline wires catalog loading, indexing, retrieval and ranking
// into a single application context.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spigell/jobmatch/internal/catalog"
	"github.com/spigell/jobmatch/internal/config"
	"github.com/spigell/jobmatch/internal/index"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/profile"
	"github.com/spigell/jobmatch/internal/ranking"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrEmptyProfile = errors.New("no skills provided")
	ErrNoResults    = errors.New("recommendation pipeline produced no results")
)

// Request is one recommendation query. Zero TopK/TopN select the configured defaults.
type Request struct {
	Skills     []string `json:"skills"`
	ResumeText string   `json:"resume_text,omitempty"`
	Location   string   `json:"location,omitempty"`
	JobType    string   `json:"job_type,omitempty"`
	TopK       int      `json:"top_k,omitempty" validate:"gte=0,lte=1000"`
	TopN       int      `json:"top_n,omitempty" validate:"gte=0,lte=100"`
}

type Response struct {
	RequestID  string              `json:"request_id"`
	Profile    profile.UserProfile `json:"profile"`
	Path       ranking.Path        `json:"path"`
	Candidates int                 `json:"candidates"`
	Results    []ranking.Result    `json:"results"`
}

type App struct {
	cfg    *config.Config
	index  *index.Index
	ranker *ranking.Engine
	logger *zap.Logger

	validate *validator.Validate
	initOnce singleflight.Group

	mu      sync.RWMutex
	records []catalog.JobRecord
	ready   bool
}

func New(cfg *config.Config, idx *index.Index, ranker *ranking.Engine, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		cfg:      cfg,
		index:    idx,
		ranker:   ranker,
		logger:   log,
		validate: validator.New(),
	}
}

// Init loads the catalog and makes the index resident. Concurrent callers share
// one initialization; success is cached, failure is retried on the next call.
func (a *App) Init(ctx context.Context) error {
	a.mu.RLock()
	ready := a.ready
	a.mu.RUnlock()
	if ready {
		return nil
	}

	_, err, _ := a.initOnce.Do("init", func() (any, error) {
		a.mu.RLock()
		ready := a.ready
		a.mu.RUnlock()
		if ready {
			return nil, nil
		}

		records, err := catalog.Load(a.cfg.Dataset, a.logger)
		if err != nil {
			return nil, err
		}
		if err := a.index.Ensure(ctx, records); err != nil {
			return nil, fmt.Errorf("prepare index: %w", err)
		}

		a.mu.Lock()
		a.records = records
		a.ready = true
		a.mu.Unlock()
		return nil, nil
	})

	return err
}

// Rebuild reloads the catalog and unconditionally rebuilds the index.
func (a *App) Rebuild(ctx context.Context) error {
	records, err := catalog.Load(a.cfg.Dataset, a.logger)
	if err != nil {
		return err
	}
	if err := a.index.Build(ctx, records); err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	a.mu.Lock()
	a.records = records
	a.ready = true
	a.mu.Unlock()
	return nil
}

// Records returns the loaded catalog.
func (a *App) Records() []catalog.JobRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.records
}

func (a *App) IndexStats() index.Stats { return a.index.Stats() }

func (a *App) ModelEnabled() bool { return a.ranker.ModelEnabled() }

// Recommend embeds the profile query, retrieves candidates and ranks them.
// Load and index failures are returned as is; retrieval and ranking failures
// are reported as ErrNoResults.
func (a *App) Recommend(ctx context.Context, req Request) (*Response, error) {
	requestID := uuid.NewString()
	log := logger.WithFields(a.logger, zap.String(logger.FieldRequestID, requestID))

	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	skills := append(profile.ExtractSkills(req.ResumeText), req.Skills...)
	p := profile.New(skills, req.Location, req.JobType)
	if p.Empty() {
		log.Warn("rejected request without skills")
		return nil, ErrEmptyProfile
	}

	if err := a.Init(ctx); err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK == 0 {
		topK = a.cfg.TopK
	}
	topN := req.TopN
	if topN == 0 {
		topN = a.cfg.TopN
	}

	query := p.Query()
	log.Debug("searching", zap.String("query", query), zap.Int("top_k", topK))

	candidates, err := a.index.Search(ctx, query, topK)
	if err != nil {
		log.Error("retrieval failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNoResults, err)
	}

	outcome, err := a.ranker.Rank(ctx, p, candidates, topN)
	if err != nil {
		log.Error("ranking failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNoResults, err)
	}

	log.Info("recommendation ready",
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(outcome.Results)),
		zap.String("path", string(outcome.Path)),
	)

	return &Response{
		RequestID:  requestID,
		Profile:    p,
		Path:       outcome.Path,
		Candidates: len(candidates),
		Results:    outcome.Results,
	}, nil
}
