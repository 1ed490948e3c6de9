package embedding

import (
	"context"
	"fmt"

	"chatmate.app/chatmate/internal/config"
)

// New builds the backend selected by cfg.Type. geminiKey is used by the gemini
// backend when cfg.APIKey is empty.
func New(ctx context.Context, cfg config.EmbeddingConfig, geminiKey string) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Type {
	case "", "hash":
		e = NewHashEmbedder(cfg.Dimensions)
	case "openai":
		e = NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
		})
	case "ollama":
		e = NewOllamaEmbedder(OllamaConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
		})
	case "gemini":
		key := cfg.APIKey
		if key == "" {
			key = geminiKey
		}
		e, err = NewGeminiEmbedder(ctx, key, cfg.Model, cfg.BatchSize)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown embedding type %q", cfg.Type)
	}
	return WithRateLimit(e, cfg.RequestsPerSecond, 1), nil
}
