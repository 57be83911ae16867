// Package anthropic generates rankings through the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/logger"
	"go.uber.org/zap"
)

const (
	Provider         = "anthropic"
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 2048
)

type messagesAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Retry       ai.RetryPolicy
}

type Generator struct {
	messages    messagesAPI
	model       string
	temperature float32
	maxTokens   int64
	retry       ai.RetryPolicy
	logger      *zap.Logger
}

func NewGenerator(cfg Config, log *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := anthropic.NewClient(opts...)

	return newGenerator(&client.Messages, cfg, log), nil
}

func newGenerator(api messagesAPI, cfg Config, log *zap.Logger) *Generator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Generator{
		messages:    api,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		retry:       cfg.Retry,
		logger:      logger.WithCommonFields(log, Provider, model),
	}
}

func (g *Generator) GenerateContent(ctx context.Context, system, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(float64(g.temperature)),
	}
	if system = strings.TrimSpace(system); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	return ai.Retry(ctx, g.retry, g.logger, classify, func(ctx context.Context) (string, error) {
		resp, err := g.messages.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("create message: %w", err)
		}
		if resp == nil {
			return "", ai.ErrEmptyResponse
		}

		var builder strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				builder.WriteString(block.Text)
			}
		}
		text := strings.TrimSpace(builder.String())
		if text == "" {
			return "", ai.ErrEmptyResponse
		}
		return text, nil
	})
}

func classify(err error) (bool, time.Duration) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return ai.TransientStatus(apiErr.StatusCode), 0
	}
	return false, 0
}

func (g *Generator) Provider() string { return Provider }

func (g *Generator) Model() string { return g.model }
