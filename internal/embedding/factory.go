package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/jobmatch/internal/config"
	"github.com/spigell/jobmatch/internal/logger"
	"github.com/spigell/jobmatch/internal/secrets"
	"go.uber.org/zap"
)

// New selects the embedding backend from cfg.Mode. A dense backend that cannot
// be constructed yields ErrBackendUnavailable, or the hashing embedder when
// cfg.FallbackToHash is set.
func New(ctx context.Context, cfg config.EmbeddingConfig, log *zap.Logger) (Embedder, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		emb Embedder
		err error
	)

	switch cfg.Mode {
	case "", config.ModeHash:
		emb = NewHashing(cfg.Dimension)
	case config.ModeGemini, config.ModeOpenAI:
		emb, err = newDense(ctx, cfg, log)
		if err != nil {
			if !cfg.FallbackToHash {
				return nil, fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, cfg.Mode, err)
			}
			log.Warn("dense embedding backend unavailable, falling back to hashing",
				zap.String("mode", cfg.Mode),
				zap.Error(err),
			)
			emb = NewHashing(0)
		}
	default:
		return nil, fmt.Errorf("unknown embedding mode %q", cfg.Mode)
	}

	if cfg.Timeout > 0 {
		emb = &timed{Embedder: emb, timeout: cfg.Timeout}
	}

	logger.WithEmbedder(log, emb.Name(), emb.Dimension()).Info("embedding backend selected")

	return emb, nil
}

func newDense(ctx context.Context, cfg config.EmbeddingConfig, log *zap.Logger) (Embedder, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  cfg.Mode + " embedding api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   strings.Fields(cfg.APIKeyEnv),
	})
	// OpenAI-compatible local servers usually run without a key.
	if err != nil && !(cfg.Mode == config.ModeOpenAI && cfg.BaseURL != "" && errors.Is(err, secrets.ErrNotConfigured)) {
		return nil, err
	}

	if cfg.Mode == config.ModeGemini {
		return NewGemini(ctx, GeminiConfig{
			APIKey:    apiKey,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			BatchSize: cfg.BatchSize,
		}, log)
	}

	return NewOpenAI(OpenAIConfig{
		APIKey:    apiKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
		BatchSize: cfg.BatchSize,
	}, log)
}

// timed bounds every Embed call.
type timed struct {
	Embedder
	timeout time.Duration
}

func (t *timed) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	return t.Embedder.Embed(ctx, texts)
}
