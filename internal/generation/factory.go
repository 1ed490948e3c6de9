package generation

import (
	"context"
	"fmt"

	"chatmate.app/chatmate/internal/config"
)

func optionsFrom(cfg config.GenerationConfig) Options {
	return Options{
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		MaxTokens:    cfg.MaxTokens,
		Temperature:  cfg.Temperature,
		Stream:       cfg.Stream,
		Retries:      cfg.Retries,
		RetryDelay:   cfg.RetryDelay,
	}
}

// New builds the backend selected by cfg.Type. geminiKey is used by the gemini
// backend when cfg.APIKey is empty.
func New(ctx context.Context, cfg config.GenerationConfig, geminiKey string) (Generator, error) {
	opts := optionsFrom(cfg)
	switch cfg.Type {
	case "", "echo":
		return NewEchoGenerator(), nil
	case "openai":
		return NewOpenAIGenerator(opts), nil
	case "ollama":
		return NewOllamaGenerator(opts), nil
	case "huggingface":
		g, err := NewHuggingFaceGenerator(opts)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "gemini":
		key := cfg.APIKey
		if key == "" {
			key = geminiKey
		}
		g, err := NewGeminiGenerator(ctx, key, opts)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown generation type %q", cfg.Type)
	}
}
