package embedding

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "text-embedding-004"

var _ Embedder = (*GeminiEmbedder)(nil)

type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	batchSize  int
	dimensions atomic.Int64
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, batchSize int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embedder requires an API key")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model, batchSize: batchSize}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	out := make([][]float32, 0, len(texts))
	for _, chunk := range batches(texts, e.batchSize) {
		b := em.NewBatch()
		for _, t := range chunk {
			b.AddContent(genai.Text(t))
		}
		res, err := em.BatchEmbedContents(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("gemini embedding request failed: %w", err)
		}
		if len(res.Embeddings) != len(chunk) {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(res.Embeddings), len(chunk))
		}
		for _, emb := range res.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, fmt.Errorf("no embedding data received from gemini")
			}
			out = append(out, emb.Values)
		}
	}
	if len(out) > 0 {
		e.dimensions.CompareAndSwap(0, int64(len(out[0])))
	}
	return out, nil
}

func (e *GeminiEmbedder) Dimensions() int   { return int(e.dimensions.Load()) }
func (e *GeminiEmbedder) ModelName() string { return e.model }

func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
