package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	if err := SetDefaults(v); err != nil {
		t.Fatalf("set defaults: %v", err)
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(newViper(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.TopK != 12 || cfg.TopN != 5 {
		t.Fatalf("unexpected top-k/top-n: %d/%d", cfg.TopK, cfg.TopN)
	}
	if cfg.Embedding.Mode != ModeHash || cfg.Embedding.Dimension != 0 {
		t.Fatalf("unexpected embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Ranking.Timeout != 20*time.Second {
		t.Fatalf("unexpected ranking timeout: %s", cfg.Ranking.Timeout)
	}
	if cfg.Ranking.APIKeyEnv != "GEMINI_API_KEY" {
		t.Fatalf("expected GEMINI_API_KEY for the default provider, got %q", cfg.Ranking.APIKeyEnv)
	}
	if cfg.Embedding.APIKeyEnv != "" {
		t.Fatalf("expected no key variable for hash embeddings, got %q", cfg.Embedding.APIKeyEnv)
	}
}

func TestLoadProviderKeyEnv(t *testing.T) {
	t.Parallel()

	v := newViper(t)
	v.Set("ranking.provider", " OpenAI ")
	v.Set("embedding.mode", "gemini")
	v.Set("embedding.api-key-env", "JOBMATCH_GOOGLE_KEY")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Ranking.Provider != ProviderOpenAI {
		t.Fatalf("expected provider to be normalized, got %q", cfg.Ranking.Provider)
	}
	if cfg.Ranking.APIKeyEnv != "OPENAI_API_KEY" {
		t.Fatalf("expected OPENAI_API_KEY, got %q", cfg.Ranking.APIKeyEnv)
	}
	if cfg.Embedding.APIKeyEnv != "JOBMATCH_GOOGLE_KEY" {
		t.Fatalf("expected the configured variable to be kept, got %q", cfg.Embedding.APIKeyEnv)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		key    string
		value  any
		expect string
	}{
		{name: "unknown mode", key: "embedding.mode", value: "bert", expect: "Mode"},
		{name: "zero top-n", key: "top-n", value: 0, expect: "TopN"},
		{name: "unknown searcher", key: "index.searcher", value: "hnsw", expect: "Searcher"},
		{name: "unknown provider", key: "ranking.provider", value: "llama", expect: "Provider"},
		{name: "bad base url", key: "ranking.base-url", value: "not a url", expect: "BaseURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := newViper(t)
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.expect) {
				t.Fatalf("expected error to mention %q, got %v", tt.expect, err)
			}
		})
	}
}

func TestProviderKeyEnv(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		ProviderGemini:    "GEMINI_API_KEY",
		ProviderOpenAI:    "OPENAI_API_KEY",
		ProviderAnthropic: "ANTHROPIC_API_KEY",
		"":                "GEMINI_API_KEY",
	}
	for provider, expect := range cases {
		if got := ProviderKeyEnv(provider); got != expect {
			t.Fatalf("provider %q: expected %s, got %s", provider, expect, got)
		}
	}
}
