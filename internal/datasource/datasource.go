// Package datasource fetches the raw inputs of an ingestion run: the
// Screener.in company page and recent news about the company.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/firmlens/firmlens/internal/config"
	"github.com/firmlens/firmlens/internal/infra"
	"github.com/firmlens/firmlens/pkg/models"
)

// CompanySource extracts the raw fields of one company page.
type CompanySource interface {
	FetchCompany(ctx context.Context, symbol string) (*models.RawFields, error)
}

// NewsSource returns recent articles about a company.
type NewsSource interface {
	Name() string
	FetchNews(ctx context.Context, company string) ([]models.RawNews, error)
}

// --- Sentinel errors ---

var (
	// ErrNoAPIKey is returned when a keyed provider has no key configured.
	ErrNoAPIKey = errors.New("datasource: API key not configured")

	// ErrNoCompany is returned when a page has no company heading.
	ErrNoCompany = errors.New("datasource: company not found on page")

	// ErrUnknownProvider is returned for an unrecognised news provider.
	ErrUnknownProvider = errors.New("datasource: unknown news provider")
)

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// HTTPClient is a pre-configured HTTP client with reasonable timeouts.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// doGet performs a GET request with the given URL and headers, returning the response body.
// The caller is responsible for closing the returned ReadCloser.
func doGet(ctx context.Context, client *http.Client, url string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "text/html, application/json, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return resp.Body, nil
}

// NewNewsSource builds the news provider named in the config. "none"
// yields a source that never returns articles; "auto" uses NewsAPI when a
// key is set and falls back to the RSS feeds.
func NewNewsSource(cfg config.NewsConfig, breakers *infra.BreakerRegistry, logger zerolog.Logger) (NewsSource, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "newsapi", "":
		n, err := NewNewsAPI(cfg, WithNewsBreakers(breakers), WithNewsLogger(logger))
		if err != nil {
			return nil, err
		}
		return n, nil
	case "rss":
		return NewRSS(cfg.Feeds, WithRSSLogger(logger)), nil
	case "none":
		return NoNews{}, nil
	case "auto":
		var sources []NewsSource
		if n, err := NewNewsAPI(cfg, WithNewsBreakers(breakers), WithNewsLogger(logger)); err == nil {
			sources = append(sources, n)
		}
		sources = append(sources, NewRSS(cfg.Feeds, WithRSSLogger(logger)))
		return NewFallback(sources...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// NoNews is a NewsSource that never returns articles.
type NoNews struct{}

// Name returns the source name.
func (NoNews) Name() string { return "none" }

// FetchNews returns nothing.
func (NoNews) FetchNews(context.Context, string) ([]models.RawNews, error) { return nil, nil }

// Fallback tries each news source in order and returns the first
// successful result.
type Fallback struct {
	sources []NewsSource
}

// NewFallback creates a Fallback over sources, in priority order.
func NewFallback(sources ...NewsSource) *Fallback {
	return &Fallback{sources: sources}
}

// Name lists the chained source names, e.g. "newsapi>rss".
func (f *Fallback) Name() string {
	names := make([]string, len(f.sources))
	for i, s := range f.sources {
		names[i] = s.Name()
	}
	return strings.Join(names, ">")
}

// FetchNews returns the first source's articles that did not fail. An
// empty but successful result stops the chain.
func (f *Fallback) FetchNews(ctx context.Context, company string) ([]models.RawNews, error) {
	var errs []error
	for _, s := range f.sources {
		items, err := s.FetchNews(ctx, company)
		if err == nil {
			return items, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return nil, fmt.Errorf("all news sources failed: %w", errors.Join(errs...))
}
