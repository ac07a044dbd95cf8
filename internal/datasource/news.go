package datasource

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/firmlens/firmlens/internal/config"
	"github.com/firmlens/firmlens/internal/infra"
	"github.com/firmlens/firmlens/pkg/models"
)

const newsAPIBaseURL = "https://newsapi.org"

// ErrNewsAPI is returned when NewsAPI answers with a non-"ok" status.
var ErrNewsAPI = errors.New("datasource: newsapi error")

// ════════════════════════════════════════════════════════════════════
// NewsAPI
// ════════════════════════════════════════════════════════════════════

// NewsAPI searches newsapi.org for articles mentioning a company.
type NewsAPI struct {
	client   *resty.Client
	apiKey   string
	days     int
	pageSize int
	breakers *infra.BreakerRegistry
	now      func() time.Time
	log      zerolog.Logger
}

// NewsOption configures a NewsAPI source.
type NewsOption func(*NewsAPI)

// WithNewsBreakers routes requests through the newsapi breaker.
func WithNewsBreakers(b *infra.BreakerRegistry) NewsOption {
	return func(n *NewsAPI) { n.breakers = b }
}

// WithNewsLogger sets the logger.
func WithNewsLogger(l zerolog.Logger) NewsOption {
	return func(n *NewsAPI) { n.log = l }
}

// WithNewsClock overrides the clock that anchors the search window.
func WithNewsClock(now func() time.Time) NewsOption {
	return func(n *NewsAPI) { n.now = now }
}

// NewNewsAPI creates a NewsAPI source. It returns ErrNoAPIKey when the key
// is empty.
func NewNewsAPI(cfg config.NewsConfig, opts ...NewsOption) (*NewsAPI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = newsAPIBaseURL
	}

	n := &NewsAPI{
		client: resty.New().
			SetBaseURL(base).
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", DefaultUserAgent).
			SetJSONMarshaler(json.Marshal).
			SetJSONUnmarshaler(json.Unmarshal),
		apiKey:   cfg.APIKey,
		days:     max(cfg.Days, 1),
		pageSize: max(cfg.PageSize, 1),
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Name returns the source name.
func (n *NewsAPI) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// FetchNews returns the most relevant articles for company over the
// configured window.
func (n *NewsAPI) FetchNews(ctx context.Context, company string) ([]models.RawNews, error) {
	call := func() (any, error) { return n.search(ctx, company) }

	var (
		out any
		err error
	)
	if n.breakers != nil {
		out, err = n.breakers.Execute(ctx, infra.BreakerNewsAPI, call)
	} else {
		out, err = call()
	}
	if err != nil {
		return nil, err
	}

	body := out.(*newsAPIResponse)
	articles := make([]models.RawNews, 0, len(body.Articles))
	for _, a := range body.Articles {
		articles = append(articles, models.RawNews{
			Title:       a.Title,
			Summary:     a.Description,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
			URL:         a.URL,
		})
	}
	n.log.Debug().Str("company", company).Int("articles", len(articles)).Msg("newsapi search done")
	return articles, nil
}

func (n *NewsAPI) search(ctx context.Context, company string) (*newsAPIResponse, error) {
	to := n.now()
	from := to.AddDate(0, 0, -n.days)

	var result, apiErr newsAPIResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        company,
			"from":     from.Format("2006-01-02"),
			"to":       to.Format("2006-01-02"),
			"language": "en",
			"sortBy":   "relevancy",
			"pageSize": strconv.Itoa(n.pageSize),
			"apiKey":   n.apiKey,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Get("/v2/everything")
	if err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}

	if resp.IsError() {
		if apiErr.Message != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrNewsAPI, apiErr.Code, apiErr.Message)
		}
		return nil, &ErrHTTP{StatusCode: resp.StatusCode(), Status: resp.Status(), Body: string(resp.Body())}
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("%w: status %q: %s", ErrNewsAPI, result.Status, result.Message)
	}
	return &result, nil
}

// ════════════════════════════════════════════════════════════════════
// RSS
// ════════════════════════════════════════════════════════════════════

// DefaultFeeds lists Indian financial news RSS feeds.
var DefaultFeeds = []string{
	"https://www.moneycontrol.com/rss/business.xml",
	"https://economictimes.indiatimes.com/markets/rssfeeds/1977021501.cms",
	"https://www.livemint.com/rss/companies",
}

// RSS scans a set of feeds for items that mention a company.
type RSS struct {
	feeds   []string
	parser  *gofeed.Parser
	limiter *infra.RateLimiter
	log     zerolog.Logger
}

// RSSOption configures an RSS source.
type RSSOption func(*RSS)

// WithRSSLogger sets the logger.
func WithRSSLogger(l zerolog.Logger) RSSOption {
	return func(r *RSS) { r.log = l }
}

// NewRSS creates an RSS source. An empty feed list uses DefaultFeeds.
func NewRSS(feeds []string, opts ...RSSOption) *RSS {
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}
	parser := gofeed.NewParser()
	parser.UserAgent = DefaultUserAgent
	parser.Client = HTTPClient

	r := &RSS{
		feeds:   feeds,
		parser:  parser,
		limiter: infra.NewRateLimiter(2, 1),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the source name.
func (r *RSS) Name() string { return "rss" }

// FetchNews reads every feed and keeps the items whose title or summary
// mention company. Unreachable feeds are skipped; the call fails only if
// none could be read.
func (r *RSS) FetchNews(ctx context.Context, company string) ([]models.RawNews, error) {
	needle := strings.ToLower(strings.TrimSpace(company))

	var (
		out     []models.RawNews
		lastErr error
		read    int
	)
	for _, feedURL := range r.feeds {
		items, err := r.fetchFeed(ctx, feedURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.Warn().Err(err).Str("feed", feedURL).Msg("skipping feed")
			lastErr = err
			continue
		}
		read++
		for _, item := range items {
			if matchesAny(item.Title+" "+item.Summary, needle) {
				out = append(out, item)
			}
		}
	}
	if read == 0 && lastErr != nil {
		return nil, fmt.Errorf("rss: no feed could be read: %w", lastErr)
	}
	return out, nil
}

func (r *RSS) fetchFeed(ctx context.Context, feedURL string) ([]models.RawNews, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", feedURL, err)
	}

	items := make([]models.RawNews, 0, len(feed.Items))
	for _, item := range feed.Items {
		n := models.RawNews{
			Title:   item.Title,
			Summary: cleanHTML(item.Description),
			Source:  feed.Title,
			URL:     item.Link,
		}
		if item.PublishedParsed != nil {
			n.PublishedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
		}
		items = append(items, n)
	}
	return items, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// matchesAny checks if text contains any of the keywords (case-insensitive).
func matchesAny(text string, keywords ...string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
