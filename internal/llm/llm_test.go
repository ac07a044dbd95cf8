package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/firmlens/firmlens/internal/config"
	"github.com/firmlens/firmlens/internal/infra"
)

// ════════════════════════════════════════════════════════════════════
// Fake OpenAI-compatible server
// ════════════════════════════════════════════════════════════════════

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func fakeServer(t *testing.T, status int, reply string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer gsk-test" {
			t.Errorf("Authorization: got %q", got)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"` + reply + `","type":"invalid_request_error"}}`))
			return
		}
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "llama-3.1-8b-instant",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "` + reply + `"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		GroqKey:   "gsk-test",
		BaseURL:   baseURL,
		Model:     "llama-3.1-8b-instant",
		MaxTokens: 512,
		Timeout:   5 * time.Second,
	}
}

// ════════════════════════════════════════════════════════════════════
// Construction
// ════════════════════════════════════════════════════════════════════

func TestNewGroqCompleterRequiresKey(t *testing.T) {
	for _, key := range []string{"", "   "} {
		_, err := NewGroqCompleter(config.LLMConfig{GroqKey: key})
		if !errors.Is(err, ErrNoAPIKey) {
			t.Errorf("key %q: got %v, want ErrNoAPIKey", key, err)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Complete
// ════════════════════════════════════════════════════════════════════

func TestCompleteSendsSystemAndUser(t *testing.T) {
	var seen chatRequest
	srv := fakeServer(t, http.StatusOK, "Net profit was 150.", &seen)

	g, err := NewGroqCompleter(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("NewGroqCompleter: %v", err)
	}
	c, err := g.Complete(context.Background(), CompletionRequest{System: "sys", User: "usr", MaxTokens: 64})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if c.Text != "Net profit was 150." {
		t.Errorf("Text: got %q", c.Text)
	}
	if c.Model != "llama-3.1-8b-instant" {
		t.Errorf("Model: got %q", c.Model)
	}
	if seen.Model != "llama-3.1-8b-instant" {
		t.Errorf("request model: got %q, want config default", seen.Model)
	}
	if len(seen.Messages) != 2 || seen.Messages[0].Role != "system" || seen.Messages[1].Content != "usr" {
		t.Errorf("messages: got %+v", seen.Messages)
	}
	if seen.MaxTokens != 64 {
		t.Errorf("max_tokens: got %d, want 64", seen.MaxTokens)
	}
	if seen.Temperature <= 0 || seen.Temperature > 1e-6 {
		t.Errorf("temperature: got %v, want near-zero", seen.Temperature)
	}
}

func TestCompleteUnauthorizedMapsToNoKey(t *testing.T) {
	srv := fakeServer(t, http.StatusUnauthorized, "Invalid API Key", nil)
	g, _ := NewGroqCompleter(testConfig(srv.URL))

	_, err := g.Complete(context.Background(), CompletionRequest{User: "q"})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("got %v, want ErrNoAPIKey", err)
	}
}

func TestCompleteErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ErrRateLimit},
		{http.StatusInternalServerError, ErrProviderDown},
		{http.StatusBadRequest, ErrProviderDown},
	}
	for _, tc := range tests {
		srv := fakeServer(t, tc.status, "nope", nil)
		g, _ := NewGroqCompleter(testConfig(srv.URL))
		_, err := g.Complete(context.Background(), CompletionRequest{User: "q"})
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","model":"m","choices":[]}`))
	}))
	defer srv.Close()

	g, _ := NewGroqCompleter(testConfig(srv.URL))
	_, err := g.Complete(context.Background(), CompletionRequest{User: "q"})
	if !errors.Is(err, ErrEmptyReply) {
		t.Errorf("got %v, want ErrEmptyReply", err)
	}
}

func TestCompleteBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":{"message":"upstream"}}`))
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m := infra.NewMetrics(reg)
	breakers := infra.NewBreakerRegistry(infra.DefaultBreakerConfig, m, zerolog.Nop())
	g, _ := NewGroqCompleter(testConfig(srv.URL), WithBreakers(breakers), WithCompletionMetrics(m))

	for i := 0; i < 5; i++ {
		g.Complete(context.Background(), CompletionRequest{User: "q"})
	}
	before := hits.Load()

	_, err := g.Complete(context.Background(), CompletionRequest{User: "q"})
	if !errors.Is(err, ErrProviderDown) || !errors.Is(err, infra.ErrCircuitOpen) {
		t.Errorf("got %v, want ErrProviderDown wrapping ErrCircuitOpen", err)
	}
	if hits.Load() != before {
		t.Error("open breaker should not reach the server")
	}
	if n := testutil.CollectAndCount(m.CompletionDuration); n == 0 {
		t.Error("completion latency not observed")
	}
}

func TestCompleterFunc(t *testing.T) {
	var f Completer = CompleterFunc(func(_ context.Context, req CompletionRequest) (*Completion, error) {
		return &Completion{Text: strings.ToUpper(req.User), Model: "echo"}, nil
	})
	c, err := f.Complete(context.Background(), CompletionRequest{User: "hi"})
	if err != nil || c.Text != "HI" {
		t.Errorf("got %v, %v", c, err)
	}
}

func TestRequestFromConfig(t *testing.T) {
	cfg := config.LLMConfig{Model: "m", Temperature: 0.2, MaxTokens: 99}
	req := RequestFromConfig(cfg, "s", "u")
	if req.System != "s" || req.User != "u" || req.Model != "m" || req.Temperature != 0.2 || req.MaxTokens != 99 {
		t.Errorf("got %+v", req)
	}
}

func TestCompletionString(t *testing.T) {
	c := &Completion{Text: strings.Repeat("x", 200), Model: "m", Latency: time.Second}
	s := c.String()
	if !strings.HasPrefix(s, "[m] ") || !strings.Contains(s, "...") {
		t.Errorf("String(): %q", s)
	}
}
