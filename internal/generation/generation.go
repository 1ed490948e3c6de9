// Package generation produces answers from a fully assembled prompt.
package generation

import (
	"context"
	"errors"
)

const (
	DefaultSystemPrompt = "You are a helpful assistant."
	DefaultMaxTokens    = 512
	DefaultTemperature  = float32(0.7)
)

// ErrEmptyResponse is returned when a backend answers without any text.
var ErrEmptyResponse = errors.New("generation: empty response")

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
	Close() error
}
