// Package api provides the HTTP read API for FirmLens: health, company
// listing and overview, grounded chat, and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/firmlens/firmlens/internal/chat"
	"github.com/firmlens/firmlens/internal/config"
	"github.com/firmlens/firmlens/internal/graph"
	"github.com/firmlens/firmlens/pkg/models"
)

const (
	companiesLimit   = 50
	defaultNewsLimit = 10
	maxNewsLimit     = 100
	// The overview shows a company's full history up to these bounds.
	overviewQuarters = 40
	overviewYears    = 20
)

// Store is what the API needs from the graph backend.
type Store interface {
	graph.Reader
	Ping(ctx context.Context) error
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	store    Store
	answerer *chat.Answerer
	gatherer prometheus.Gatherer
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer exposes the given registry at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, store Store, answerer *chat.Answerer, opts ...Option) *Server {
	srv := &Server{
		cfg:      cfg,
		store:    store,
		answerer: answerer,
		gatherer: prometheus.DefaultGatherer,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/companies", s.handleCompanies)
		r.Get("/company/{companyID}/overview", s.handleOverview)
		r.Post("/chat", s.handleChat)
		r.Get("/config", s.handleGetConfig)
	})

	return r
}

// requestLogger logs one line per request with zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// ════════════════════════════════════════════════════════════════════
// Handlers
// ════════════════════════════════════════════════════════════════════

// HealthResponse reports whether the graph store is reachable.
type HealthResponse struct {
	OK    bool   `json:"ok"`
	Neo4j bool   `json:"neo4j"`
	Store string `json:"store"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{OK: true, Neo4j: true, Store: s.cfg.Store.Backend}
	if err := s.store.Ping(r.Context()); err != nil {
		resp = HealthResponse{OK: false, Neo4j: false, Store: s.cfg.Store.Backend, Error: err.Error()}
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CompaniesResponse lists tracked companies.
type CompaniesResponse struct {
	Companies []models.CompanySummary `json:"companies"`
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.store.Companies(r.Context(), companiesLimit)
	if err != nil {
		s.log.Error().Err(err).Msg("list companies")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if companies == nil {
		companies = []models.CompanySummary{}
	}
	writeJSON(w, http.StatusOK, CompaniesResponse{Companies: companies})
}

// OverviewResponse is a company with its financial history and recent news.
type OverviewResponse struct {
	Company     models.Company         `json:"company"`
	Quarterly   []models.PeriodMetrics `json:"quarterly"`
	Annual      []models.PeriodMetrics `json:"annual"`
	News        []models.NewsItem      `json:"news"`
	GeneratedAt string                 `json:"generated_at"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	newsLimit := defaultNewsLimit
	if v := r.URL.Query().Get("newsLimit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "newsLimit must be a non-negative integer")
			return
		}
		newsLimit = min(n, maxNewsLimit)
	}

	b, err := chat.Fetch(r.Context(), s.store, companyID, chat.Limits{
		Quarters: overviewQuarters,
		Years:    overviewYears,
		News:     newsLimit,
	})
	if errors.Is(err, graph.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Company not found: "+companyID)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("company_id", companyID).Msg("company overview")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, OverviewResponse{
		Company:     b.Company,
		Quarterly:   b.Quarterly,
		Annual:      b.Annual,
		News:        b.News,
		GeneratedAt: s.now().UTC().Format("2006-01-02T15:04:05.000000") + "Z",
	})
}

// ChatRequest accepts the question under either "question" or "message".
type ChatRequest struct {
	Question  string `json:"question"`
	Message   string `json:"message"`
	CompanyID string `json:"company_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	// A missing or malformed body is treated as an empty request.
	_ = json.NewDecoder(r.Body).Decode(&req)

	companyID := strings.TrimSpace(req.CompanyID)
	if companyID == "" {
		companyID = s.cfg.Chat.DefaultCompany
	}
	question := req.Question
	if strings.TrimSpace(question) == "" {
		question = req.Message
	}

	reply := s.answerer.Answer(r.Context(), companyID, question)
	writeJSON(w, chatStatus(reply.Meta), reply)
}

// chatStatus maps a chat outcome to an HTTP status. A missing completion
// key is a well-formed answer, not a server fault.
func chatStatus(meta chat.Meta) int {
	switch meta.Error {
	case "", chat.ErrTagMissingKey:
		return http.StatusOK
	case chat.ErrTagCompanyNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

// ErrorResponse is the body of every non-chat error.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
