package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
	defaultOpenAIBatch          = 64
	openAIConcurrency           = 4
)

type embeddingsAPI interface {
	New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// OpenAI embeds text through any OpenAI-compatible /embeddings endpoint,
// including local sentence-transformer servers (Ollama, TEI).
type OpenAI struct {
	embeddings embeddingsAPI
	model      string
	dim        int
	requestDim bool
	batchSize  int
	logger     *zap.Logger
}

type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	BatchSize int
}

func NewOpenAI(cfg OpenAIConfig, logger *zap.Logger) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if apiKey == "" && baseURL == "" {
		return nil, errors.New("openai api key is required when no base url is configured")
	}

	opts := []option.RequestOption{option.WithMaxRetries(2)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)

	return newOpenAI(&client.Embeddings, cfg, logger), nil
}

func newOpenAI(api embeddingsAPI, cfg OpenAIConfig, logger *zap.Logger) *OpenAI {
	if logger == nil {
		logger = zap.NewNop()
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIEmbeddingModel
	}

	dim := cfg.Dimension
	requestDim := dim > 0 && strings.HasPrefix(model, "text-embedding-3")
	if dim <= 0 {
		dim = knownOpenAIDimension(model)
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultOpenAIBatch
	}

	return &OpenAI{
		embeddings: api,
		model:      model,
		dim:        dim,
		requestDim: requestDim,
		batchSize:  batch,
		logger:     logger,
	}
}

func knownOpenAIDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "all-minilm", "all-minilm:l6-v2", "sentence-transformers/all-MiniLM-L6-v2":
		return 384
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	default:
		return 1536
	}
}

func (o *OpenAI) Name() string { return "openai:" + o.model }

func (o *OpenAI) Dimension() int { return o.dim }

func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(openAIConcurrency)

	for _, b := range batches(len(texts), o.batchSize) {
		start, end := b[0], b[1]
		g.Go(func() error {
			params := openai.EmbeddingNewParams{
				Model: openai.EmbeddingModel(o.model),
				Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts[start:end]},
			}
			if o.requestDim {
				params.Dimensions = openai.Int(int64(o.dim))
			}

			resp, err := o.embeddings.New(gctx, params)
			if err != nil {
				return fmt.Errorf("embeddings request for texts %d-%d: %w", start, end, err)
			}
			if resp == nil || len(resp.Data) != end-start {
				return fmt.Errorf("embeddings response for texts %d-%d is incomplete", start, end)
			}

			for _, d := range resp.Data {
				idx := start + int(d.Index)
				if d.Index < 0 || idx >= end {
					return fmt.Errorf("embeddings response index %d out of range", d.Index)
				}
				vec := make([]float32, len(d.Embedding))
				for i, v := range d.Embedding {
					vec[i] = float32(v)
				}
				out[idx] = Normalize(vec)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := CheckDimension(out, o.dim); err != nil {
		return nil, err
	}

	o.logger.Debug("embedded texts", zap.Int("count", len(texts)), zap.String("model", o.model))

	return out, nil
}
