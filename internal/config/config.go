// Package config holds the application settings decoded by viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "JOBMATCH"

	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	ModeHash   = "hash"
	ModeGemini = "gemini"
	ModeOpenAI = "openai"

	SearcherFlat     = "flat"
	SearcherParallel = "parallel"
)

type Config struct {
	Dataset   string          `mapstructure:"dataset" yaml:"dataset" validate:"required"`
	TopK      int             `mapstructure:"top-k" yaml:"top-k" validate:"gte=1"`
	TopN      int             `mapstructure:"top-n" yaml:"top-n" validate:"gte=1"`
	Index     IndexConfig     `mapstructure:"index" yaml:"index"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Ranking   RankingConfig   `mapstructure:"ranking" yaml:"ranking"`
}

type IndexConfig struct {
	Path     string `mapstructure:"path" yaml:"path" validate:"required"`
	Searcher string `mapstructure:"searcher" yaml:"searcher" validate:"oneof=flat parallel"`
	Workers  int    `mapstructure:"workers" yaml:"workers" validate:"gte=0"`
}

// EmbeddingConfig selects the embedding backend. Dimension 0 selects the
// backend default (128 for hash).
type EmbeddingConfig struct {
	Mode           string        `mapstructure:"mode" yaml:"mode" validate:"oneof=hash gemini openai"`
	Dimension      int           `mapstructure:"dimension" yaml:"dimension" validate:"gte=0"`
	Model          string        `mapstructure:"model" yaml:"model,omitempty"`
	BaseURL        string        `mapstructure:"base-url" yaml:"base-url,omitempty" validate:"omitempty,url"`
	APIKey         string        `mapstructure:"api-key" yaml:"-" json:"-"`
	APIKeyFile     string        `mapstructure:"api-key-file" yaml:"api-key-file,omitempty"`
	APIKeyEnv      string        `mapstructure:"api-key-env" yaml:"api-key-env,omitempty"`
	FallbackToHash bool          `mapstructure:"fallback-to-hash" yaml:"fallback-to-hash"`
	BatchSize      int           `mapstructure:"batch-size" yaml:"batch-size" validate:"gte=0"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type RankingConfig struct {
	Provider     string        `mapstructure:"provider" yaml:"provider" validate:"oneof=gemini openai anthropic"`
	Model        string        `mapstructure:"model" yaml:"model,omitempty"`
	BaseURL      string        `mapstructure:"base-url" yaml:"base-url,omitempty" validate:"omitempty,url"`
	APIKey       string        `mapstructure:"api-key" yaml:"-" json:"-"`
	APIKeyFile   string        `mapstructure:"api-key-file" yaml:"api-key-file,omitempty"`
	APIKeyEnv    string        `mapstructure:"api-key-env" yaml:"api-key-env,omitempty"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries   int           `mapstructure:"max-retries" yaml:"max-retries" validate:"gte=0,lte=10"`
	MaxLogLength int           `mapstructure:"max-log-length" yaml:"max-log-length" validate:"gte=0"`
	Temperature  float32       `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int           `mapstructure:"max-tokens" yaml:"max-tokens" validate:"gte=0"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() *Config {
	return &Config{
		Dataset: "data/sample_jobs.csv",
		TopK:    12,
		TopN:    5,
		Index: IndexConfig{
			Path:     "data/vector_store",
			Searcher: SearcherFlat,
		},
		Embedding: EmbeddingConfig{
			Mode:           ModeHash,
			FallbackToHash: true,
			BatchSize:      64,
			Timeout:        30 * time.Second,
		},
		Ranking: RankingConfig{
			Provider:     ProviderGemini,
			Timeout:      20 * time.Second,
			MaxRetries:   2,
			MaxLogLength: 200,
			Temperature:  0.3,
			MaxTokens:    2048,
		},
	}
}

// SetDefaults registers Defaults() and the environment bindings on v.
func SetDefaults(v *viper.Viper) error {
	d := Defaults()

	v.SetDefault("dataset", d.Dataset)
	v.SetDefault("top-k", d.TopK)
	v.SetDefault("top-n", d.TopN)
	v.SetDefault("index.path", d.Index.Path)
	v.SetDefault("index.searcher", d.Index.Searcher)
	v.SetDefault("index.workers", d.Index.Workers)
	v.SetDefault("embedding.mode", d.Embedding.Mode)
	v.SetDefault("embedding.dimension", d.Embedding.Dimension)
	v.SetDefault("embedding.fallback-to-hash", d.Embedding.FallbackToHash)
	v.SetDefault("embedding.batch-size", d.Embedding.BatchSize)
	v.SetDefault("embedding.timeout", d.Embedding.Timeout)
	v.SetDefault("ranking.provider", d.Ranking.Provider)
	v.SetDefault("ranking.timeout", d.Ranking.Timeout)
	v.SetDefault("ranking.max-retries", d.Ranking.MaxRetries)
	v.SetDefault("ranking.max-log-length", d.Ranking.MaxLogLength)
	v.SetDefault("ranking.temperature", d.Ranking.Temperature)
	v.SetDefault("ranking.max-tokens", d.Ranking.MaxTokens)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindings := map[string][]string{
		"dataset":         {EnvPrefix + "_DATASET", "JOBS_DATASET"},
		"index.path":      {EnvPrefix + "_INDEX_PATH", "VECTOR_STORE_PATH"},
		"embedding.model": {EnvPrefix + "_EMBEDDING_MODEL", "EMBEDDING_MODEL"},
		"ranking.model":   {EnvPrefix + "_RANKING_MODEL", "GEMINI_MODEL"},

		"embedding.api-key":      {EnvPrefix + "_EMBEDDING_API_KEY"},
		"embedding.api-key-file": {EnvPrefix + "_EMBEDDING_API_KEY_FILE"},
		"embedding.base-url":     {EnvPrefix + "_EMBEDDING_BASE_URL"},
		"ranking.api-key":        {EnvPrefix + "_RANKING_API_KEY"},
		"ranking.api-key-file":   {EnvPrefix + "_RANKING_API_KEY_FILE"},
		"ranking.base-url":       {EnvPrefix + "_RANKING_BASE_URL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("binding %s environment variables: %w", key, err)
		}
	}

	return nil
}

// Load decodes v into a Config, names the conventional API key environment
// variable of each remote provider and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Ranking.Provider = strings.ToLower(strings.TrimSpace(cfg.Ranking.Provider))
	cfg.Embedding.Mode = strings.ToLower(strings.TrimSpace(cfg.Embedding.Mode))
	cfg.Index.Searcher = strings.ToLower(strings.TrimSpace(cfg.Index.Searcher))

	if cfg.Ranking.APIKeyEnv == "" {
		cfg.Ranking.APIKeyEnv = ProviderKeyEnv(cfg.Ranking.Provider)
	}
	if cfg.Embedding.APIKeyEnv == "" && cfg.Embedding.Mode != ModeHash {
		cfg.Embedding.APIKeyEnv = ProviderKeyEnv(cfg.Embedding.Mode)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ProviderKeyEnv returns the conventional environment variable holding the API key for provider.
func ProviderKeyEnv(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

// Validate checks struct constraints.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := validator.New().Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
