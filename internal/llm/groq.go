package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/firmlens/firmlens/internal/config"
	"github.com/firmlens/firmlens/internal/infra"
)

// DefaultGroqBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultGroqBaseURL = "https://api.groq.com/openai/v1"

// GroqCompleter implements Completer against Groq (or any
// OpenAI-compatible endpoint) using the go-openai client.
type GroqCompleter struct {
	client   *openai.Client
	model    string
	timeout  time.Duration
	breakers *infra.BreakerRegistry
	metrics  *infra.Metrics
	log      zerolog.Logger
}

// GroqOption configures a GroqCompleter.
type GroqOption func(*GroqCompleter)

// WithBreakers routes every completion through the named completion breaker.
func WithBreakers(b *infra.BreakerRegistry) GroqOption {
	return func(g *GroqCompleter) { g.breakers = b }
}

// WithCompletionMetrics records completion latency.
func WithCompletionMetrics(m *infra.Metrics) GroqOption {
	return func(g *GroqCompleter) { g.metrics = m }
}

// WithCompletionLogger sets the logger.
func WithCompletionLogger(l zerolog.Logger) GroqOption {
	return func(g *GroqCompleter) { g.log = l }
}

// NewGroqCompleter creates a completer. An empty API key yields ErrNoAPIKey
// so callers can degrade to the "not configured" reply.
func NewGroqCompleter(cfg config.LLMConfig, opts ...GroqOption) (*GroqCompleter, error) {
	if strings.TrimSpace(cfg.GroqKey) == "" {
		return nil, ErrNoAPIKey
	}

	clientCfg := openai.DefaultConfig(cfg.GroqKey)
	clientCfg.BaseURL = DefaultGroqBaseURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	g := &GroqCompleter{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: timeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Complete sends the system and user messages and returns the first choice.
func (g *GroqCompleter) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}

	start := time.Now()
	call := func() (any, error) { return g.create(ctx, model, req) }

	var (
		out any
		err error
	)
	if g.breakers != nil {
		out, err = g.breakers.Execute(ctx, infra.BreakerCompletion, call)
	} else {
		out, err = call()
	}
	g.metrics.ObserveCompletion(time.Since(start), err)

	if err != nil {
		if errors.Is(err, infra.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %w", ErrProviderDown, err)
		}
		return nil, err
	}

	resp := out.(openai.ChatCompletionResponse)
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyReply
	}
	if resp.Model != "" {
		model = resp.Model
	}

	c := &Completion{
		Text:    resp.Choices[0].Message.Content,
		Model:   model,
		Latency: time.Since(start),
	}
	g.log.Debug().
		Str("model", c.Model).
		Dur("latency", c.Latency).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("completion done")
	return c, nil
}

func (g *GroqCompleter) create(ctx context.Context, model string, req CompletionRequest) (openai.ChatCompletionResponse, error) {
	temp := float32(req.Temperature)
	if temp == 0 {
		// go-openai omits a zero temperature, which providers read as their default.
		temp = math.SmallestNonzeroFloat32
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: temp,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return resp, classify(err)
	}
	return resp, nil
}

// classify maps transport and API errors onto the package sentinels.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrNoAPIKey, apiErr.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimit, apiErr.Message)
		}
		return fmt.Errorf("%w: API error (%d): %s", ErrProviderDown, apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %v", ErrNoAPIKey, reqErr.Err)
		}
		return fmt.Errorf("%w: HTTP %d: %v", ErrProviderDown, reqErr.HTTPStatusCode, reqErr.Err)
	}
	return fmt.Errorf("%w: %v", ErrProviderDown, err)
}
