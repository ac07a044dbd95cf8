// Package llm provides the text-completion client used to phrase grounded
// answers. The provider is any OpenAI-compatible chat completions API;
// Groq is the default.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firmlens/firmlens/internal/config"
)

// Common errors returned by completers.
var (
	ErrNoAPIKey     = errors.New("llm: API key not configured")
	ErrRateLimit    = errors.New("llm: rate limit exceeded")
	ErrProviderDown = errors.New("llm: provider unavailable")
	ErrEmptyReply   = errors.New("llm: no response")
)

// CompletionRequest is a single system + user exchange.
type CompletionRequest struct {
	System      string
	User        string
	Model       string  // empty uses the completer default
	Temperature float64 // 0 requests deterministic output
	MaxTokens   int
}

// Completion is the text returned by the provider.
type Completion struct {
	Text    string        `json:"text"`
	Model   string        `json:"model"`
	Latency time.Duration `json:"latency"`
}

func (c *Completion) String() string {
	text := c.Text
	if len(text) > 80 {
		text = text[:77] + "..."
	}
	return fmt.Sprintf("[%s] %s (%s)", c.Model, text, c.Latency.Round(time.Millisecond))
}

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (*Completion, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return f(ctx, req)
}

// RequestFromConfig fills the sampling options of a request from config.
func RequestFromConfig(cfg config.LLMConfig, system, user string) CompletionRequest {
	return CompletionRequest{
		System:      system,
		User:        user,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}
