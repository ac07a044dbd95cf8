package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/firmlens/firmlens/internal/config"
	"github.com/firmlens/firmlens/internal/graph"
	"github.com/firmlens/firmlens/internal/infra"
	"github.com/firmlens/firmlens/internal/llm"
)

// Fixed replies.
const (
	PromptForInput = "Ask a question about the company’s financials or news."
	NotConfigured  = "Chatbot is not configured yet. Set the GROQ_API_KEY environment variable and restart the server."
	ChatFailed     = "Chat failed."
)

// Machine-readable error tags carried in Meta.Error.
const (
	ErrTagMissingKey       = "missing_groq_api_key"
	ErrTagCompanyNotFound  = "company_not_found"
	ErrTagStoreUnavailable = "store_unavailable"
	ErrTagCompletionFailed = "completion_failed"
)

// Meta describes how a reply was produced.
type Meta struct {
	OK          bool   `json:"ok"`
	CompanyID   string `json:"company_id,omitempty"`
	Model       string `json:"model,omitempty"`
	GeneratedAt string `json:"generated_at,omitempty"`
	Error       string `json:"error,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// Reply is the structured answer to one question. Every path, including
// failures, produces one.
type Reply struct {
	Reply string `json:"reply"`
	Meta  Meta   `json:"meta"`
}

// Answerer answers questions about one company from its graph context.
type Answerer struct {
	store     graph.Reader
	completer llm.Completer
	llmCfg    config.LLMConfig
	limits    Limits
	metrics   *infra.Metrics
	log       zerolog.Logger
	now       func() time.Time
}

// AnswererOption configures an Answerer.
type AnswererOption func(*Answerer)

// WithLimits sets the context bounds.
func WithLimits(l Limits) AnswererOption {
	return func(a *Answerer) { a.limits = l }
}

// WithLLMConfig sets the model and sampling options sent with each request.
func WithLLMConfig(cfg config.LLMConfig) AnswererOption {
	return func(a *Answerer) { a.llmCfg = cfg }
}

// WithMetrics records chat outcomes.
func WithMetrics(m *infra.Metrics) AnswererOption {
	return func(a *Answerer) { a.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) AnswererOption {
	return func(a *Answerer) { a.log = l }
}

// WithNow overrides the clock used for GeneratedAt.
func WithNow(now func() time.Time) AnswererOption {
	return func(a *Answerer) { a.now = now }
}

// NewAnswerer creates an answerer. A nil completer means no completion
// credential is configured; every non-blank question then gets the
// NotConfigured reply.
func NewAnswerer(store graph.Reader, completer llm.Completer, opts ...AnswererOption) *Answerer {
	a := &Answerer{
		store:     store,
		completer: completer,
		llmCfg:    config.LLMConfig{MaxTokens: 512},
		limits:    DefaultLimits,
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Configured reports whether a completion capability is available.
func (a *Answerer) Configured() bool {
	return a.completer != nil
}

// Answer produces a grounded reply for question about companyID.
func (a *Answerer) Answer(ctx context.Context, companyID, question string) Reply {
	q := strings.TrimSpace(question)
	if q == "" {
		a.metrics.RecordChat("blank")
		return Reply{Reply: PromptForInput, Meta: Meta{OK: true}}
	}
	if a.completer == nil {
		a.metrics.RecordChat(ErrTagMissingKey)
		return Reply{Reply: NotConfigured, Meta: Meta{OK: false, Error: ErrTagMissingKey}}
	}

	start := a.now()
	log := a.log.With().Str("company_id", companyID).Logger()

	bundle, err := Fetch(ctx, a.store, companyID, a.limits)
	if err != nil {
		tag := ErrTagStoreUnavailable
		reply := ChatFailed
		if errors.Is(err, graph.ErrNotFound) {
			tag = ErrTagCompanyNotFound
			reply = fmt.Sprintf("Company not found: %s", companyID)
		}
		log.Warn().Err(err).Str("error_tag", tag).Msg("context fetch failed")
		return a.fail(companyID, reply, tag, err)
	}

	req := llm.RequestFromConfig(a.llmCfg, SystemPrompt, UserPrompt(Render(bundle), q))
	completion, err := a.completer.Complete(ctx, req)
	if err != nil {
		tag := ErrTagCompletionFailed
		reply := ChatFailed
		if errors.Is(err, llm.ErrNoAPIKey) {
			tag = ErrTagMissingKey
			reply = NotConfigured
		}
		log.Warn().Err(err).Str("error_tag", tag).Msg("completion failed")
		return a.fail(companyID, reply, tag, err)
	}

	model := completion.Model
	if model == "" {
		model = req.Model
	}
	a.metrics.RecordChat("ok")
	log.Info().
		Str("model", model).
		Dur("elapsed", a.now().Sub(start)).
		Msg("answered")

	return Reply{
		Reply: completion.Text,
		Meta: Meta{
			OK:          true,
			CompanyID:   companyID,
			Model:       model,
			GeneratedAt: a.timestamp(),
		},
	}
}

func (a *Answerer) fail(companyID, reply, tag string, err error) Reply {
	a.metrics.RecordChat(tag)
	return Reply{
		Reply: reply,
		Meta: Meta{
			OK:          false,
			CompanyID:   companyID,
			Model:       a.llmCfg.Model,
			GeneratedAt: a.timestamp(),
			Error:       tag,
			Detail:      err.Error(),
		},
	}
}

// timestamp is UTC ISO-8601 with a trailing Z.
func (a *Answerer) timestamp() string {
	return a.now().UTC().Format("2006-01-02T15:04:05.000000") + "Z"
}
