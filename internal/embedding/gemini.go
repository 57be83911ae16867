package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultGeminiEmbeddingModel = "text-embedding-004"
	defaultGeminiDimension      = 768
	// Gemini rejects embedding batches larger than this.
	geminiMaxBatch = 100
)

type embedContentAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Gemini is a dense sentence embedder backed by the Gemini embeddings API.
// The client is created once and reused for every call.
type Gemini struct {
	models    embedContentAPI
	model     string
	dim       int
	batchSize int
	logger    *zap.Logger
}

type GeminiConfig struct {
	APIKey    string
	Model     string
	Dimension int
	BatchSize int
}

func NewGemini(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*Gemini, error) {
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

	return newGemini(client.Models, cfg, logger), nil
}

func newGemini(models embedContentAPI, cfg GeminiConfig, logger *zap.Logger) *Gemini {
	if logger == nil {
		logger = zap.NewNop()
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiEmbeddingModel
	}

	dim := cfg.Dimension
	if dim <= 0 {
		dim = defaultGeminiDimension
	}

	batch := cfg.BatchSize
	if batch <= 0 || batch > geminiMaxBatch {
		batch = geminiMaxBatch
	}

	return &Gemini{
		models:    models,
		model:     model,
		dim:       dim,
		batchSize: batch,
		logger:    logger,
	}
}

func (g *Gemini) Name() string { return "gemini:" + g.model }

func (g *Gemini) Dimension() int { return g.dim }

func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	dim := int32(g.dim)

	for _, b := range batches(len(texts), g.batchSize) {
		contents := make([]*genai.Content, 0, b[1]-b[0])
		for _, text := range texts[b[0]:b[1]] {
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}

		resp, err := g.models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
			TaskType:             "SEMANTIC_SIMILARITY",
			OutputDimensionality: &dim,
		})
		if err != nil {
			return nil, fmt.Errorf("embed content: %w", err)
		}
		if resp == nil || len(resp.Embeddings) != len(contents) {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", embeddingsLen(resp), len(contents))
		}

		for _, e := range resp.Embeddings {
			if e == nil {
				return nil, errors.New("gemini returned an empty embedding")
			}
			vec := make([]float32, len(e.Values))
			copy(vec, e.Values)
			out = append(out, Normalize(vec))
		}

		g.logger.Debug("embedded batch",
			zap.Int("from", b[0]),
			zap.Int("to", b[1]),
		)
	}

	if err := CheckDimension(out, g.dim); err != nil {
		return nil, err
	}

	return out, nil
}

func embeddingsLen(resp *genai.EmbedContentResponse) int {
	if resp == nil {
		return 0
	}
	return len(resp.Embeddings)
}
