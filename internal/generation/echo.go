package generation

import (
	"context"
	"strings"
)

var _ Generator = (*EchoGenerator)(nil)

// EchoGenerator answers offline with the Context section of the prompt.
type EchoGenerator struct{}

func NewEchoGenerator() *EchoGenerator { return &EchoGenerator{} }

func (EchoGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	const start, end = "Context: ", "\n\nChat History:"
	text := prompt
	if i := strings.Index(text, start); i >= 0 {
		text = text[i+len(start):]
		if j := strings.Index(text, end); j >= 0 {
			text = text[:j]
		}
	}
	return strings.TrimSpace(text), nil
}

func (EchoGenerator) ModelName() string { return "echo" }
func (EchoGenerator) Close() error      { return nil }
