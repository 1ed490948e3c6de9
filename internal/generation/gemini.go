package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"chatmate.app/chatmate/internal/logger"
)

const DefaultGeminiModel = "gemini-1.5-flash-latest"

var _ Generator = (*GeminiGenerator)(nil)

type GeminiGenerator struct {
	client       *genai.Client
	model        string
	systemPrompt string
	maxTokens    int32
	temperature  float32
}

func NewGeminiGenerator(ctx context.Context, apiKey string, opts Options) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini generator requires an API key")
	}
	opts = opts.withDefaults(DefaultGeminiModel)
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiGenerator{
		client:       client,
		model:        opts.Model,
		systemPrompt: opts.SystemPrompt,
		maxTokens:    int32(opts.MaxTokens),
		temperature:  opts.Temperature,
	}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(g.systemPrompt)},
	}
	temp, maxTokens := g.temperature, g.maxTokens
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation request failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			logger.Debugf("Gemini response part was not text: %T", part)
		}
	}
	if responseText.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return responseText.String(), nil
}

func (g *GeminiGenerator) ModelName() string { return g.model }

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}
