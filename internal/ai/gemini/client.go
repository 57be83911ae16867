package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/jobmatch/internal/ai"
	"github.com/spigell/jobmatch/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	Provider     = "gemini"
	defaultModel = "gemini-1.5-flash"
)

type generateContentAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Retry       ai.RetryPolicy
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	models      generateContentAPI
	model       string
	temperature float32
	maxTokens   int32
	retry       ai.RetryPolicy
	logger      *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg Config, log *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, cfg, log), nil
}

func newGenerator(models generateContentAPI, cfg Config, log *zap.Logger) *Generator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	return &Generator{
		models:      models,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   int32(cfg.MaxTokens),
		retry:       cfg.Retry,
		logger:      logger.WithCommonFields(log, Provider, model),
	}
}

// GenerateContent sends the prompt to Gemini and returns the concatenated text parts.
func (g *Generator) GenerateContent(ctx context.Context, system, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
	}
	if g.maxTokens > 0 {
		config.MaxOutputTokens = g.maxTokens
	}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	return ai.Retry(ctx, g.retry, g.logger, classify, func(ctx context.Context) (string, error) {
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		return responseText(resp)
	})
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ai.ErrEmptyResponse
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", ai.ErrEmptyResponse
	}

	return output, nil
}

func classify(err error) (bool, time.Duration) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ai.TransientStatus(apiErr.Code), ai.RetryAfter(apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return ai.TransientStatus(apiErrPtr.Code), ai.RetryAfter(apiErrPtr.Message)
	}
	return false, 0
}

func (g *Generator) Provider() string { return Provider }

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}
