package generation

import "time"

// Options are the settings shared by the remote backends.
type Options struct {
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	Stream       bool
	Timeout      time.Duration
	Retries      int
	RetryDelay   time.Duration
}

func (o Options) withDefaults(model string) Options {
	if o.Model == "" {
		o.Model = model
	}
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Temperature <= 0 {
		o.Temperature = DefaultTemperature
	}
	if o.Timeout == 0 {
		o.Timeout = 120 * time.Second
	}
	return o
}
