// Package openai generates rankings through any OpenAI-compatible chat completions endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/logger"
	"go.uber.org/zap"
)

const (
	Provider         = "openai"
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 2048
)

type completionsAPI interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
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
	completions completionsAPI
	model       string
	temperature float32
	maxTokens   int64
	retry       ai.RetryPolicy
	logger      *zap.Logger
}

func NewGenerator(cfg Config, log *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if apiKey == "" && baseURL == "" {
		return nil, errors.New("openai api key is required")
	}

	// Retries are driven by ai.Retry.
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)

	return newGenerator(&client.Chat.Completions, cfg, log), nil
}

func newGenerator(api completionsAPI, cfg Config, log *zap.Logger) *Generator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Generator{
		completions: api,
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

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system = strings.TrimSpace(system); system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(g.model),
		Messages:    messages,
		MaxTokens:   openai.Int(g.maxTokens),
		Temperature: openai.Float(float64(g.temperature)),
	}

	return ai.Retry(ctx, g.retry, g.logger, classify, func(ctx context.Context) (string, error) {
		resp, err := g.completions.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if resp == nil || len(resp.Choices) == 0 {
			return "", ai.ErrEmptyResponse
		}
		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return "", ai.ErrEmptyResponse
		}
		return text, nil
	})
}

func classify(err error) (bool, time.Duration) {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return ai.TransientStatus(apiErr.StatusCode), ai.RetryAfter(apiErr.Message)
	}
	return false, 0
}

func (g *Generator) Provider() string { return Provider }

func (g *Generator) Model() string { return g.model }
