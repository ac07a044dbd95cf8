package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/firmlens/firmlens/internal/config"
	"github.com/firmlens/firmlens/internal/infra"
	"github.com/firmlens/firmlens/pkg/models"
)

const screenerBaseURL = "https://www.screener.in"

// Screener scrapes company pages from Screener.in.
type Screener struct {
	baseURL  string
	client   *http.Client
	cache    *infra.Cache[*models.RawFields]
	limiter  *infra.RateLimiter
	breakers *infra.BreakerRegistry
	log      zerolog.Logger
}

// ScreenerOption configures a Screener.
type ScreenerOption func(*Screener)

// WithScreenerHTTPClient replaces the default HTTP client.
func WithScreenerHTTPClient(c *http.Client) ScreenerOption {
	return func(s *Screener) { s.client = c }
}

// WithScreenerBreakers routes page fetches through the screener breaker.
func WithScreenerBreakers(b *infra.BreakerRegistry) ScreenerOption {
	return func(s *Screener) { s.breakers = b }
}

// WithScreenerLogger sets the logger.
func WithScreenerLogger(l zerolog.Logger) ScreenerOption {
	return func(s *Screener) { s.log = l }
}

// NewScreener creates a Screener.in source from the source config.
func NewScreener(cfg config.SourceConfig, opts ...ScreenerOption) *Screener {
	base := strings.TrimRight(cfg.ScreenerURL, "/")
	if base == "" {
		base = screenerBaseURL
	}
	s := &Screener{
		baseURL: base,
		client:  HTTPClient,
		cache:   infra.NewCache[*models.RawFields](cfg.CacheTTL),
		limiter: infra.NewRateLimiter(cfg.RatePerSec, 1),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchCompany downloads the consolidated page for symbol, falling back to
// the standalone page, and extracts its raw fields.
func (s *Screener) FetchCompany(ctx context.Context, symbol string) (*models.RawFields, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("screener.in: empty symbol")
	}

	if cached, ok := s.cache.Get(symbol); ok {
		return cached, nil
	}

	doc, err := s.fetchPage(ctx, symbol)
	if err != nil {
		return nil, err
	}

	raw, err := ParseCompanyPage(doc, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("screener.in %s: %w", symbol, err)
	}
	s.log.Debug().
		Str("symbol", symbol).
		Int("quarters", len(raw.Quarterly.Periods)).
		Int("years", len(raw.Annual.Periods)).
		Msg("company page parsed")

	s.cache.Set(symbol, raw)
	return raw, nil
}

// fetchPage downloads and parses the Screener.in company page.
func (s *Screener) fetchPage(ctx context.Context, symbol string) (*goquery.Document, error) {
	doc, err := s.get(ctx, fmt.Sprintf("%s/company/%s/consolidated/", s.baseURL, url.PathEscape(symbol)))
	if err == nil {
		return doc, nil
	}
	if ctx.Err() != nil || errors.Is(err, infra.ErrCircuitOpen) {
		return nil, fmt.Errorf("screener.in %s: %w", symbol, err)
	}

	// Try standalone if consolidated not found.
	s.log.Debug().Err(err).Str("symbol", symbol).Msg("consolidated page unavailable, trying standalone")
	doc, err = s.get(ctx, fmt.Sprintf("%s/company/%s/", s.baseURL, url.PathEscape(symbol)))
	if err != nil {
		return nil, fmt.Errorf("screener.in %s: %w", symbol, err)
	}
	return doc, nil
}

func (s *Screener) get(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	load := func() (any, error) {
		body, err := doGet(ctx, s.client, pageURL, map[string]string{"Accept": "text/html"})
		if err != nil {
			return nil, err
		}
		defer body.Close()

		doc, err := goquery.NewDocumentFromReader(body)
		if err != nil {
			return nil, fmt.Errorf("parse screener HTML: %w", err)
		}
		return doc, nil
	}

	var (
		out any
		err error
	)
	if s.breakers != nil {
		out, err = s.breakers.Execute(ctx, infra.BreakerScreener, load)
	} else {
		out, err = load()
	}
	if err != nil {
		return nil, err
	}
	return out.(*goquery.Document), nil
}

// ParseCompanyPage extracts the raw fields from a Screener.in company page.
// Relative report links are resolved against baseURL.
func ParseCompanyPage(doc *goquery.Document, baseURL string) (*models.RawFields, error) {
	name := cellText(doc.Find("h1").First())
	if name == "" {
		return nil, ErrNoCompany
	}

	raw := &models.RawFields{CompanyName: name}

	// Sector is the second breadcrumb link in the peers header, industry the last.
	links := doc.Find("section#peers p.sub a")
	if links.Length() >= 2 {
		raw.Sector = cellText(links.Eq(1))
		raw.Industry = cellText(links.Last())
	}

	doc.Find("#top-ratios li").Each(func(_ int, li *goquery.Selection) {
		value := li.Find(".value")
		if value.Length() == 0 {
			return
		}
		switch cellText(li.Find(".name")) {
		case "Market Cap":
			raw.MarketCap = cellText(value)
		case "Current Price":
			raw.CurrentPrice = cellText(value)
		}
	})

	about := doc.Find(".company-profile").Find("div.about, div.sub").First().Find("p").First()
	if about.Length() > 0 {
		raw.Description = cellText(about)
		about.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			raw.DescriptionSources = append(raw.DescriptionSources, href)
		})
	}

	raw.Quarterly = parseQuarters(doc.Find("section#quarters"), baseURL)
	raw.Annual = parseProfitLoss(doc.Find("section#profit-loss"))
	return raw, nil
}

// resultsTable is a Screener results table: column labels plus body rows,
// each row's first cell being the metric name.
type resultsTable struct {
	labels []string
	rows   []*goquery.Selection
}

func readTable(section *goquery.Selection) resultsTable {
	var t resultsTable
	section.Find("thead th").Each(func(i int, th *goquery.Selection) {
		if i > 0 { // skip row label column
			t.labels = append(t.labels, cellText(th))
		}
	})
	section.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		t.rows = append(t.rows, tr)
	})
	return t
}

// row returns the first row whose name contains metric.
func (t resultsTable) row(metric string) *goquery.Selection {
	for _, tr := range t.rows {
		first := tr.Find("td.text").First()
		if first.Length() == 0 {
			first = tr.Find("td").First()
		}
		if strings.Contains(cellText(first), metric) {
			return tr
		}
	}
	return nil
}

// values returns the data cells of a metric row, empty if the row is absent.
func (t resultsTable) values(metric string) []string {
	tr := t.row(metric)
	if tr == nil {
		return nil
	}
	var out []string
	tr.Find("td").Each(func(i int, td *goquery.Selection) {
		if i > 0 {
			out = append(out, cellText(td))
		}
	})
	return out
}

func parseQuarters(section *goquery.Selection, baseURL string) models.RawTable {
	if section.Length() == 0 {
		return models.RawTable{}
	}
	t := readTable(section)
	raw := models.RawTable{
		Periods:         t.labels,
		Sales:           t.values("Sales"),
		OperatingProfit: t.values("Operating Profit"),
		OPMPercent:      t.values("OPM"),
		NetProfit:       t.values("Net Profit"),
		EPS:             t.values("EPS"),
	}

	if tr := t.row("Raw PDF"); tr != nil {
		tr.Find("td").Each(func(i int, td *goquery.Selection) {
			if i == 0 {
				return
			}
			href, ok := td.Find("a[href]").First().Attr("href")
			if !ok {
				raw.Sources = append(raw.Sources, "")
				return
			}
			raw.Sources = append(raw.Sources, absoluteURL(baseURL, href))
		})
	}
	return raw
}

// parseProfitLoss keeps the fiscal-year columns of the annual table and
// drops the trailing-twelve-months column.
func parseProfitLoss(section *goquery.Selection) models.RawTable {
	if section.Length() == 0 {
		return models.RawTable{}
	}
	t := readTable(section)

	var keep []int
	var raw models.RawTable
	for i, label := range t.labels {
		if len(strings.Fields(label)) != 2 {
			continue // "TTM" and blank headers
		}
		keep = append(keep, i)
		raw.Periods = append(raw.Periods, label)
	}
	if len(keep) == 0 {
		return models.RawTable{}
	}

	pick := func(metric string) []string {
		values := t.values(metric)
		if values == nil {
			return nil
		}
		out := make([]string, 0, len(keep))
		for _, i := range keep {
			if i < len(values) {
				out = append(out, values[i])
			}
		}
		return out
	}
	raw.Sales = pick("Sales")
	raw.OperatingProfit = pick("Operating Profit")
	raw.OPMPercent = pick("OPM")
	raw.NetProfit = pick("Net Profit")
	raw.EPS = pick("EPS")
	return raw
}

func absoluteURL(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil || ref.IsAbs() {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return base + href
	}
	return b.ResolveReference(ref).String()
}

// cellText returns the text of sel with whitespace runs collapsed.
func cellText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
