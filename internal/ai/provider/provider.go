// Package provider constructs the configured ranking model generator.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/ai/anthropic"
	"github.com/spigell/jobmatch/internal/ai/gemini"
	"github.com/spigell/jobmatch/internal/ai/openai"
	"github.com/spigell/jobmatch/internal/config"
	"github.com/spigell/jobmatch/internal/secrets"
	"go.uber.org/zap"
)

// ErrNoAPIKey is returned when the provider has no credentials. Callers run heuristic-only.
var ErrNoAPIKey = errors.New("no model api key configured")

// New returns the generator for cfg.Provider.
func New(ctx context.Context, cfg config.RankingConfig, logger *zap.Logger) (ai.Generator, error) {
	apiKey, origin, err := secrets.Resolve(secrets.Source{
		Name:  cfg.Provider + " api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   strings.Fields(cfg.APIKeyEnv),
	})
	if err != nil {
		if !errors.Is(err, secrets.ErrNotConfigured) {
			return nil, err
		}
		// OpenAI-compatible local servers run without a key.
		if cfg.Provider != config.ProviderOpenAI || cfg.BaseURL == "" {
			return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrNoAPIKey)
		}
	}
	if logger != nil && origin != secrets.OriginNone {
		logger.Debug("model api key resolved", zap.String("provider", cfg.Provider), zap.String("source", string(origin)))
	}

	retry := ai.RetryPolicy{MaxAttempts: cfg.MaxRetries}

	switch cfg.Provider {
	case "", config.ProviderGemini:
		return generator(gemini.NewGenerator(ctx, gemini.Config{
			APIKey:      apiKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Retry:       retry,
		}, logger))
	case config.ProviderOpenAI:
		return generator(openai.NewGenerator(openai.Config{
			APIKey:      apiKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Retry:       retry,
		}, logger))
	case config.ProviderAnthropic:
		return generator(anthropic.NewGenerator(anthropic.Config{
			APIKey:      apiKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Retry:       retry,
		}, logger))
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// generator keeps a failed constructor from yielding a typed nil interface.
func generator[G ai.Generator](g G, err error) (ai.Generator, error) {
	if err != nil {
		return nil, err
	}
	return g, nil
}
