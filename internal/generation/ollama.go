package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "llama3.2"
)

var _ Generator = (*OllamaGenerator)(nil)

type OllamaGenerator struct {
	client *http.Client
	opts   Options
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func NewOllamaGenerator(opts Options) *OllamaGenerator {
	opts = opts.withDefaults(DefaultOllamaModel)
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOllamaBaseURL
	}
	return &OllamaGenerator{client: &http.Client{Timeout: opts.Timeout}, opts: opts}
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	jsonBody, err := json.Marshal(ollamaGenerateRequest{
		Model:  g.opts.Model,
		Prompt: prompt,
		System: g.opts.SystemPrompt,
		Options: map[string]any{
			"num_predict": g.opts.MaxTokens,
			"temperature": g.opts.Temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.BaseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", ErrEmptyResponse
	}
	return out.Response, nil
}

func (g *OllamaGenerator) ModelName() string { return g.opts.Model }
func (g *OllamaGenerator) Close() error      { return nil }
