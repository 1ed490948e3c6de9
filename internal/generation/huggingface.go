package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatmate.app/chatmate/internal/logger"
)

const (
	DefaultHuggingFaceRetries    = 3
	DefaultHuggingFaceRetryDelay = 20 * time.Second
)

var _ Generator = (*HuggingFaceGenerator)(nil)

// HuggingFaceGenerator posts to a hosted inference endpoint. BaseURL is the
// full model URL. A 503 means the model is still loading and is retried.
type HuggingFaceGenerator struct {
	client *http.Client
	opts   Options
}

type hfRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func NewHuggingFaceGenerator(opts Options) (*HuggingFaceGenerator, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("huggingface generator requires a model URL")
	}
	opts = opts.withDefaults(opts.BaseURL)
	if opts.Retries <= 0 {
		opts.Retries = DefaultHuggingFaceRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultHuggingFaceRetryDelay
	}
	return &HuggingFaceGenerator{client: &http.Client{Timeout: opts.Timeout}, opts: opts}, nil
}

func (g *HuggingFaceGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	jsonBody, err := json.Marshal(hfRequest{
		Inputs: prompt,
		Parameters: map[string]any{
			"max_new_tokens":   g.opts.MaxTokens,
			"temperature":      g.opts.Temperature,
			"return_full_text": false,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	for attempt := 1; attempt <= g.opts.Retries; attempt++ {
		text, loading, err := g.post(ctx, jsonBody)
		if !loading {
			return text, err
		}
		if attempt == g.opts.Retries {
			break
		}
		logger.Infof("HuggingFace model is loading, retrying in %s (attempt %d/%d)", g.opts.RetryDelay, attempt, g.opts.Retries)
		timer := time.NewTimer(g.opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "", fmt.Errorf("huggingface model still loading after %d attempts", g.opts.Retries)
}

func (g *HuggingFaceGenerator) post(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.opts.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", true, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return "", false, fmt.Errorf("huggingface authorization failed, check the API token")
	case resp.StatusCode != http.StatusOK:
		payload, _ := io.ReadAll(resp.Body)
		return "", false, fmt.Errorf("huggingface error (status %d): %s", resp.StatusCode, bytes.TrimSpace(payload))
	}

	var out []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if len(out) == 0 || strings.TrimSpace(out[0].GeneratedText) == "" {
		return "", false, ErrEmptyResponse
	}
	return out[0].GeneratedText, false, nil
}

func (g *HuggingFaceGenerator) ModelName() string { return g.opts.Model }
func (g *HuggingFaceGenerator) Close() error      { return nil }
