package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/firmlens/firmlens/internal/chat"
	"github.com/firmlens/firmlens/internal/config"
	"github.com/firmlens/firmlens/internal/datasource"
	"github.com/firmlens/firmlens/internal/graph"
	"github.com/firmlens/firmlens/internal/infra"
	"github.com/firmlens/firmlens/internal/llm"
	"github.com/firmlens/firmlens/internal/logging"
	"github.com/firmlens/firmlens/internal/pipeline"
)

// app holds the process-wide dependencies shared by the commands.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	registry *prometheus.Registry
	metrics  *infra.Metrics
	breakers *infra.BreakerRegistry
	store    graph.Store
}

func newApp(cfg *config.Config, logger zerolog.Logger) *app {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := infra.NewMetrics(reg)
	return &app{
		cfg:      cfg,
		log:      logger,
		registry: reg,
		metrics:  m,
		breakers: infra.NewBreakerRegistry(infra.DefaultBreakerConfig, m, logging.Component(logger, "breaker")),
	}
}

// openStore connects the configured graph backend.
func (a *app) openStore() (graph.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	switch strings.ToLower(a.cfg.Store.Backend) {
	case "memory":
		a.log.Warn().Msg("using in-memory graph store; data is lost on exit")
		a.store = graph.NewMemoryStore()
	case "neo4j", "":
		s, err := graph.NewNeo4jStore(a.cfg.Store,
			graph.WithObserver(a.metrics),
			graph.WithLogger(logging.Component(a.log, "neo4j")),
		)
		if err != nil {
			return nil, err
		}
		a.store = s
	default:
		return nil, fmt.Errorf("unknown store backend %q (want neo4j or memory)", a.cfg.Store.Backend)
	}
	return a.store, nil
}

func (a *app) close(ctx context.Context) {
	if a.store == nil {
		return
	}
	if err := a.store.Close(ctx); err != nil {
		a.log.Warn().Err(err).Msg("closing graph store")
	}
}

// completer returns nil when no completion key is configured so the
// answerer replies with its not-configured message.
func (a *app) completer() (llm.Completer, error) {
	c, err := llm.NewGroqCompleter(a.cfg.LLM,
		llm.WithBreakers(a.breakers),
		llm.WithCompletionMetrics(a.metrics),
		llm.WithCompletionLogger(logging.Component(a.log, "llm")),
	)
	if errors.Is(err, llm.ErrNoAPIKey) {
		a.log.Warn().Msg("GROQ_API_KEY is not set; chat will answer with a configuration notice")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (a *app) answerer(store graph.Reader) (*chat.Answerer, error) {
	c, err := a.completer()
	if err != nil {
		return nil, err
	}
	return chat.NewAnswerer(store, c,
		chat.WithLimits(chat.LimitsFromConfig(a.cfg.Chat)),
		chat.WithLLMConfig(a.cfg.LLM),
		chat.WithMetrics(a.metrics),
		chat.WithLogger(logging.Component(a.log, "chat")),
	), nil
}

// newsSource falls back to no news when NewsAPI has no key.
func (a *app) newsSource() (datasource.NewsSource, error) {
	src, err := datasource.NewNewsSource(a.cfg.News, a.breakers, logging.Component(a.log, "news"))
	if errors.Is(err, datasource.ErrNoAPIKey) {
		a.log.Warn().Msg("NEWSAPI_KEY is not set; ingesting without news")
		return datasource.NoNews{}, nil
	}
	return src, err
}

func (a *app) runner(store graph.Store) (*pipeline.Runner, error) {
	news, err := a.newsSource()
	if err != nil {
		return nil, err
	}
	screener := datasource.NewScreener(a.cfg.Source,
		datasource.WithScreenerBreakers(a.breakers),
		datasource.WithScreenerLogger(logging.Component(a.log, "screener")),
	)
	ingestor := graph.NewIngestor(store, graph.WithIngestLogger(logging.Component(a.log, "ingest")))
	return pipeline.NewRunner(screener, ingestor,
		pipeline.WithNews(news),
		pipeline.WithMetrics(a.metrics),
		pipeline.WithLogger(logging.Component(a.log, "pipeline")),
	), nil
}
