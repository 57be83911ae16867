package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/ai/provider"
	"github.com/spigell/jobmatch/internal/config"
	"github.com/spigell/jobmatch/internal/embedding"
	"github.com/spigell/jobmatch/internal/index"
	"github.com/spigell/jobmatch/internal/ranking"
	"go.uber.org/zap"
)

// Bootstrap constructs every collaborator from cfg. Nothing is loaded until Init.
func Bootstrap(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	emb, err := embedding.New(ctx, cfg.Embedding, log)
	if err != nil {
		return nil, fmt.Errorf("embedding backend: %w", err)
	}

	searcher, err := index.NewSearcher(cfg.Index.Searcher, cfg.Index.Workers)
	if err != nil {
		return nil, err
	}

	idx := index.New(emb, searcher, index.NewStore(cfg.Index.Path), log)

	engine := ranking.New(newGenerator(ctx, cfg.Ranking, log), log, ranking.Options{
		Timeout:      cfg.Ranking.Timeout,
		MaxLogLength: cfg.Ranking.MaxLogLength,
	})

	return New(cfg, idx, engine, log), nil
}

// newGenerator returns nil when ranking must stay heuristic-only.
func newGenerator(ctx context.Context, cfg config.RankingConfig, log *zap.Logger) ai.Generator {
	gen, err := provider.New(ctx, cfg, log)
	switch {
	case err == nil:
		log.Info("model ranking enabled", zap.String("provider", gen.Provider()), zap.String("model", gen.Model()))
		return gen
	case errors.Is(err, provider.ErrNoAPIKey):
		log.Info("no model api key configured, using heuristic ranking", zap.String("provider", cfg.Provider))
	default:
		log.Warn("model provider unavailable, using heuristic ranking", zap.Error(err))
	}
	return nil
}
