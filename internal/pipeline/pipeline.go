// Package pipeline runs one ingestion: extract the company page and its
// news, normalize them, and write the snapshot to the graph.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/firmlens/firmlens/internal/datasource"
	"github.com/firmlens/firmlens/internal/graph"
	"github.com/firmlens/firmlens/internal/infra"
	"github.com/firmlens/firmlens/internal/normalize"
	"github.com/firmlens/firmlens/pkg/models"
)

// Options selects what one run ingests.
type Options struct {
	Symbol      string // Screener.in symbol, e.g. "TATAELXSI"
	CompanyName string // news query; defaults to the scraped name
	SkipNews    bool
	DryRun      bool // normalize only, write nothing
}

// Result is the outcome of a run. Report is nil for dry runs.
type Result struct {
	Snapshot  *models.Snapshot `json:"snapshot"`
	Report    *graph.Report    `json:"report,omitempty"`
	NewsError string           `json:"news_error,omitempty"`
	Elapsed   time.Duration    `json:"elapsed"`
}

// Runner wires the extraction sources to the ingestor.
type Runner struct {
	company  datasource.CompanySource
	news     datasource.NewsSource
	ingestor *graph.Ingestor
	metrics  *infra.Metrics
	log      zerolog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithNews sets the news source. Without one, runs ingest no news.
func WithNews(n datasource.NewsSource) Option {
	return func(r *Runner) { r.news = n }
}

// WithMetrics records run outcomes and write counts.
func WithMetrics(m *infra.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// NewRunner creates a Runner.
func NewRunner(company datasource.CompanySource, ingestor *graph.Ingestor, opts ...Option) *Runner {
	r := &Runner{
		company:  company,
		ingestor: ingestor,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run extracts, normalizes and ingests one company. The page and the news
// are fetched concurrently. A news failure is logged and the run goes on
// without news; a page or normalization failure aborts before any write.
func (r *Runner) Run(ctx context.Context, opts Options) (res *Result, err error) {
	start := time.Now()
	res = &Result{}
	defer func() {
		res.Elapsed = time.Since(start)
		if !opts.DryRun {
			r.metrics.RecordIngest(res.Elapsed, err)
		}
	}()

	symbol := strings.TrimSpace(opts.Symbol)
	if symbol == "" {
		return res, errors.New("pipeline: symbol is required")
	}
	log := r.log.With().Str("symbol", symbol).Logger()

	var (
		raw     *models.RawFields
		rawNews []models.RawNews
		newsErr error
	)
	query := strings.TrimSpace(opts.CompanyName)
	fetchNews := r.news != nil && !opts.SkipNews

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		raw, err = r.company.FetchCompany(gctx, symbol)
		if err != nil {
			return fmt.Errorf("extract %s: %w", symbol, err)
		}
		return nil
	})
	if fetchNews && query != "" {
		g.Go(func() error {
			rawNews, newsErr = r.news.FetchNews(gctx, query)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	// Without an explicit name the news query waits for the scraped one.
	if fetchNews && query == "" {
		rawNews, newsErr = r.news.FetchNews(ctx, raw.CompanyName)
	}
	if newsErr != nil {
		log.Warn().Err(newsErr).Str("source", r.news.Name()).Msg("news fetch failed, continuing without news")
		res.NewsError = newsErr.Error()
		rawNews = nil
	}

	snap, err := normalize.Normalize(*raw)
	if err != nil {
		return res, fmt.Errorf("normalize %s: %w", symbol, err)
	}
	snap.News = normalize.NormalizeNews(rawNews)
	res.Snapshot = snap

	log.Info().
		Str("company_id", snap.Company.CompanyID).
		Int("quarters", len(snap.Quarterly)).
		Int("years", len(snap.Annual)).
		Int("news", len(snap.News)).
		Bool("dry_run", opts.DryRun).
		Msg("snapshot normalized")

	if opts.DryRun {
		return res, nil
	}

	report, err := r.ingestor.Ingest(ctx, snap)
	res.Report = report
	if report != nil {
		r.metrics.AddIngestWrites("company", report.Companies)
		r.metrics.AddIngestWrites("period", report.Periods)
		r.metrics.AddIngestWrites("news", report.News)
	}
	if err != nil {
		return res, err
	}
	return res, nil
}
