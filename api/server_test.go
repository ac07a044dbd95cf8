package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/firmlens/firmlens/internal/chat"
	"github.com/firmlens/firmlens/internal/config"
	"github.com/firmlens/firmlens/internal/graph"
	"github.com/firmlens/firmlens/internal/infra"
	"github.com/firmlens/firmlens/internal/llm"
	"github.com/firmlens/firmlens/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func testConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Backend: "memory", Password: "s3cret-password"},
		LLM:   config.LLMConfig{GroqKey: "gsk-very-secret-key", Model: "llama-3.1-8b-instant", MaxTokens: 512},
		Chat:  config.ChatConfig{DefaultCompany: "ACME_CORP"},
	}
}

func seededStore(t *testing.T) *graph.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := graph.NewMemoryStore()
	snap := &models.Snapshot{
		Company: models.Company{CompanyID: "ACME_CORP", Name: "Acme Corp", Sector: models.Ptr("Technology")},
		Quarterly: []models.PeriodMetrics{
			{
				Period:  models.Period{PeriodEnd: "2023-12-31", PeriodType: models.PeriodQuarter, Label: "Dec 2023"},
				Metrics: models.Metrics{Sales: models.Ptr(int64(900))},
			},
			{
				Period:  models.Period{PeriodEnd: "2024-03-31", PeriodType: models.PeriodQuarter, Label: "Mar 2024"},
				Metrics: models.Metrics{Sales: models.Ptr(int64(1000)), NetProfit: models.Ptr(int64(150))},
			},
		},
		News: []models.NewsItem{
			{NewsID: "a", Title: models.Ptr("Older"), URL: "https://x/a", PublishedAt: models.Ptr("2024-03-01")},
			{NewsID: "b", Title: models.Ptr("Newer"), URL: "https://x/b", PublishedAt: models.Ptr("2024-04-01")},
		},
	}
	if _, err := graph.NewIngestor(s).Ingest(ctx, snap); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func echoCompleter() llm.Completer {
	return llm.CompleterFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
		return &llm.Completion{Text: req.User, Model: "echo"}, nil
	})
}

func testServer(t *testing.T, store Store, completer llm.Completer) *Server {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	m := infra.NewMetrics(reg)
	answerer := chat.NewAnswerer(store, completer, chat.WithMetrics(m), chat.WithLLMConfig(cfg.LLM))
	srv := NewServer(cfg, store, answerer, WithGatherer(reg))
	srv.now = func() time.Time { return time.Date(2024, 4, 5, 10, 30, 0, 0, time.UTC) }
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	// Unmarshal leaves rec.Body intact for later string checks.
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

// ════════════════════════════════════════════════════════════════════
// Health
// ════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	srv := testServer(t, seededStore(t), echoCompleter())
	for _, path := range []string{"/health", "/api/health"} {
		rec := do(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
		got := decode[HealthResponse](t, rec)
		if !got.OK || !got.Neo4j || got.Store != "memory" {
			t.Errorf("%s: got %+v", path, got)
		}
	}
}

func TestHealthStoreDown(t *testing.T) {
	store := graph.NewMemoryStore()
	store.Close(context.Background())
	srv := testServer(t, store, echoCompleter())

	rec := do(t, srv, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rec.Code)
	}
	got := decode[HealthResponse](t, rec)
	if got.OK || got.Neo4j || got.Error == "" {
		t.Errorf("got %+v", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// Companies & overview
// ════════════════════════════════════════════════════════════════════

func TestCompanies(t *testing.T) {
	srv := testServer(t, seededStore(t), echoCompleter())
	rec := do(t, srv, http.MethodGet, "/api/companies", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	got := decode[CompaniesResponse](t, rec)
	if len(got.Companies) != 1 || got.Companies[0].CompanyID != "ACME_CORP" || *got.Companies[0].Sector != "Technology" {
		t.Errorf("got %+v", got)
	}
}

func TestCompaniesEmptyIsArray(t *testing.T) {
	srv := testServer(t, graph.NewMemoryStore(), echoCompleter())
	rec := do(t, srv, http.MethodGet, "/api/companies", "")
	if !strings.Contains(rec.Body.String(), `"companies":[]`) {
		t.Errorf("body: %s", rec.Body.String())
	}
}

func TestOverview(t *testing.T) {
	srv := testServer(t, seededStore(t), echoCompleter())
	rec := do(t, srv, http.MethodGet, "/api/company/ACME_CORP/overview?newsLimit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	got := decode[OverviewResponse](t, rec)

	if got.Company.Name != "Acme Corp" {
		t.Errorf("company: got %+v", got.Company)
	}
	if len(got.Quarterly) != 2 || got.Quarterly[0].Label != "Dec 2023" {
		t.Errorf("quarterly should run oldest first: got %+v", got.Quarterly)
	}
	if len(got.News) != 1 || *got.News[0].Title != "Newer" {
		t.Errorf("news: got %+v", got.News)
	}
	if got.GeneratedAt != "2024-04-05T10:30:00.000000Z" {
		t.Errorf("generated_at: got %q", got.GeneratedAt)
	}
	for _, want := range []string{`"operating_profit":null`, `"industry":null`, `"description_sources":[]`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %s: %s", want, body)
		}
	}
}

func TestOverviewErrors(t *testing.T) {
	srv := testServer(t, seededStore(t), echoCompleter())

	tests := []struct {
		path   string
		status int
		errMsg string
	}{
		{"/api/company/NOPE/overview", http.StatusNotFound, "Company not found: NOPE"},
		{"/api/company/ACME_CORP/overview?newsLimit=abc", http.StatusBadRequest, "newsLimit must be a non-negative integer"},
		{"/api/company/ACME_CORP/overview?newsLimit=-1", http.StatusBadRequest, "newsLimit must be a non-negative integer"},
	}
	for _, tc := range tests {
		rec := do(t, srv, http.MethodGet, tc.path, "")
		if rec.Code != tc.status {
			t.Errorf("%s: status got %d, want %d", tc.path, rec.Code, tc.status)
			continue
		}
		if got := decode[ErrorResponse](t, rec); got.Error != tc.errMsg {
			t.Errorf("%s: error got %q, want %q", tc.path, got.Error, tc.errMsg)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Chat
// ════════════════════════════════════════════════════════════════════

func TestChat(t *testing.T) {
	srv := testServer(t, seededStore(t), echoCompleter())

	tests := []struct {
		name, body string
	}{
		{"question field", `{"question":"What was net profit?","company_id":"ACME_CORP"}`},
		{"message field", `{"message":"What was net profit?"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/chat", tc.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
			}
			got := decode[chat.Reply](t, rec)
			if !got.Meta.OK || got.Meta.CompanyID != "ACME_CORP" {
				t.Errorf("meta: got %+v", got.Meta)
			}
			if !strings.Contains(got.Reply, "net_profit=150") {
				t.Errorf("reply should carry the context: %q", got.Reply)
			}
		})
	}
}

func TestChatOutcomes(t *testing.T) {
	store := seededStore(t)

	tests := []struct {
		name      string
		completer llm.Completer
		body      string
		status    int
		wantTag   string
		wantReply string
	}{
		{"blank", echoCompleter(), `{"question":"  "}`, http.StatusOK, "", chat.PromptForInput},
		{"malformed body", echoCompleter(), `{not json`, http.StatusOK, "", chat.PromptForInput},
		{"missing key", nil, `{"question":"hi"}`, http.StatusOK, chat.ErrTagMissingKey, chat.NotConfigured},
		{"unknown company", echoCompleter(), `{"question":"hi","company_id":"NOPE"}`, http.StatusNotFound, chat.ErrTagCompanyNotFound, "Company not found: NOPE"},
		{"provider down", llm.CompleterFunc(func(context.Context, llm.CompletionRequest) (*llm.Completion, error) {
			return nil, llm.ErrProviderDown
		}), `{"question":"hi"}`, http.StatusInternalServerError, chat.ErrTagCompletionFailed, chat.ChatFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := testServer(t, store, tc.completer)
			rec := do(t, srv, http.MethodPost, "/api/chat", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status: got %d, want %d", rec.Code, tc.status)
			}
			got := decode[chat.Reply](t, rec)
			if got.Meta.Error != tc.wantTag || got.Reply != tc.wantReply {
				t.Errorf("got %+v", got)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Metrics & config
// ════════════════════════════════════════════════════════════════════

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, seededStore(t), echoCompleter())
	do(t, srv, http.MethodPost, "/api/chat", `{"question":"hi"}`)

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `firmlens_chat_requests_total{outcome="ok"} 1`) {
		t.Errorf("chat counter missing:\n%s", rec.Body.String())
	}
}

func TestConfigHidesSecrets(t *testing.T) {
	srv := testServer(t, seededStore(t), echoCompleter())
	rec := do(t, srv, http.MethodGet, "/api/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, secret := range []string{"gsk-very-secret-key", "s3cret-password"} {
		if strings.Contains(body, secret) {
			t.Errorf("config leaks %q: %s", secret, body)
		}
	}
	got := decode[ConfigView](t, rec)
	if got.LLM.Model != "llama-3.1-8b-instant" || got.Chat.DefaultCompany != "ACME_CORP" || len(got.Keys) != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := testServer(t, seededStore(t), echoCompleter())
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://ui.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("CORS preflight should be answered")
	}
}
