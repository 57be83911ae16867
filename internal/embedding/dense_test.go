package embedding

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

type fakeEmbedContent struct {
	mu      sync.Mutex
	dim     int
	calls   int
	configs []*genai.EmbedContentConfig
	err     error
}

func (f *fakeEmbedContent) EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.configs = append(f.configs, config)
	if f.err != nil {
		return nil, f.err
	}

	resp := &genai.EmbedContentResponse{}
	for i := range contents {
		values := make([]float32, f.dim)
		values[i%f.dim] = 3
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: values})
	}
	return resp, nil
}

func TestGeminiEmbedBatchesAndNormalizes(t *testing.T) {
	t.Parallel()

	api := &fakeEmbedContent{dim: 4}
	emb := newGemini(api, GeminiConfig{Model: "text-embedding-004", Dimension: 4, BatchSize: 2}, nil)

	vecs, err := emb.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	if api.calls != 2 {
		t.Fatalf("expected 2 batches, got %d", api.calls)
	}
	if got := *api.configs[0].OutputDimensionality; got != 4 {
		t.Fatalf("expected output dimensionality 4, got %d", got)
	}
	for i, vec := range vecs {
		if math.Abs(math.Sqrt(Dot(vec, vec))-1) > 1e-5 {
			t.Fatalf("vector %d is not normalized: %v", i, vec)
		}
	}
	if emb.Name() != "gemini:text-embedding-004" {
		t.Fatalf("unexpected name %q", emb.Name())
	}
}

func TestGeminiEmbedDimensionMismatch(t *testing.T) {
	t.Parallel()

	emb := newGemini(&fakeEmbedContent{dim: 3}, GeminiConfig{Dimension: 4}, nil)

	_, err := emb.Embed(context.Background(), []string{"a"})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestGeminiEmbedPropagatesAPIError(t *testing.T) {
	t.Parallel()

	emb := newGemini(&fakeEmbedContent{dim: 4, err: errors.New("quota")}, GeminiConfig{Dimension: 4}, nil)

	if _, err := emb.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}

type fakeEmbeddings struct {
	mu     sync.Mutex
	dim    int
	params []openai.EmbeddingNewParams
}

func (f *fakeEmbeddings) New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error) {
	f.mu.Lock()
	f.params = append(f.params, body)
	f.mu.Unlock()

	inputs := body.Input.OfArrayOfStrings
	resp := &openai.CreateEmbeddingResponse{}
	// Reverse order to prove results are placed by index.
	for i := len(inputs) - 1; i >= 0; i-- {
		values := make([]float64, f.dim)
		values[0] = float64(len(inputs[i]))
		values[1] = 1
		resp.Data = append(resp.Data, openai.Embedding{Embedding: values, Index: int64(i)})
	}
	return resp, nil
}

func TestOpenAIEmbedPreservesOrderAcrossConcurrentBatches(t *testing.T) {
	t.Parallel()

	api := &fakeEmbeddings{dim: 2}
	emb := newOpenAI(api, OpenAIConfig{Model: "all-minilm", Dimension: 2, BatchSize: 1}, nil)

	texts := []string{"a", "bbbb", "cc", "ddddddd"}
	vecs, err := emb.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, text := range texts {
		want := Normalize([]float32{float32(len(text)), 1})
		if math.Abs(float64(vecs[i][0]-want[0])) > 1e-6 {
			t.Fatalf("vector %d out of order: got %v want %v", i, vecs[i], want)
		}
	}
	if len(api.params) != len(texts) {
		t.Fatalf("expected %d requests, got %d", len(texts), len(api.params))
	}
	for _, p := range api.params {
		if p.Dimensions.Valid() {
			t.Fatalf("dimensions must only be requested for text-embedding-3 models")
		}
	}
}

func TestOpenAIRequestsDimensionsForV3Models(t *testing.T) {
	t.Parallel()

	api := &fakeEmbeddings{dim: 2}
	emb := newOpenAI(api, OpenAIConfig{Model: "text-embedding-3-small", Dimension: 2}, nil)

	if _, err := emb.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := api.params[0].Dimensions.Value; got != 2 {
		t.Fatalf("expected dimensions=2, got %d", got)
	}
}

func TestOpenAIDefaultDimension(t *testing.T) {
	t.Parallel()

	emb := newOpenAI(&fakeEmbeddings{}, OpenAIConfig{Model: "sentence-transformers/all-MiniLM-L6-v2"}, nil)
	if emb.Dimension() != 384 {
		t.Fatalf("expected 384, got %d", emb.Dimension())
	}
}
