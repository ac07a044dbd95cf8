// Package chat assembles a company's graph state into a bounded text
// context and answers questions grounded in it.
package chat

import (
	"context"
	"fmt"
	"slices"

	"github.com/firmlens/firmlens/internal/config"
	"github.com/firmlens/firmlens/internal/graph"
	"github.com/firmlens/firmlens/pkg/models"
)

// Limits bounds how much of the graph goes into one context.
type Limits struct {
	Quarters int
	Years    int
	News     int
}

// DefaultLimits keeps 10 quarters, 4 years and 10 news items.
var DefaultLimits = Limits{Quarters: 10, Years: 4, News: 10}

// LimitsFromConfig reads the chat limits, falling back to the defaults for
// unset values.
func LimitsFromConfig(cfg config.ChatConfig) Limits {
	l := DefaultLimits
	if cfg.QuarterLimit > 0 {
		l.Quarters = cfg.QuarterLimit
	}
	if cfg.AnnualLimit > 0 {
		l.Years = cfg.AnnualLimit
	}
	if cfg.NewsLimit > 0 {
		l.News = cfg.NewsLimit
	}
	return l
}

// Bundle is everything the context is rendered from. Quarterly and Annual
// run oldest to newest; News runs newest first.
type Bundle struct {
	Company   models.Company         `json:"company"`
	Quarterly []models.PeriodMetrics `json:"quarterly"`
	Annual    []models.PeriodMetrics `json:"annual"`
	News      []models.NewsItem      `json:"news"`
}

// Fetch reads the company and its most recent periods and news. It returns
// graph.ErrNotFound if the company is absent; no further reads happen then.
func Fetch(ctx context.Context, r graph.Reader, companyID string, limits Limits) (*Bundle, error) {
	company, err := r.Company(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("fetch company %s: %w", companyID, err)
	}

	quarterly, err := r.Periods(ctx, companyID, models.PeriodQuarter, limits.Quarters)
	if err != nil {
		return nil, fmt.Errorf("fetch quarters: %w", err)
	}
	annual, err := r.Periods(ctx, companyID, models.PeriodYear, limits.Years)
	if err != nil {
		return nil, fmt.Errorf("fetch years: %w", err)
	}
	news, err := r.News(ctx, companyID, limits.News)
	if err != nil {
		return nil, fmt.Errorf("fetch news: %w", err)
	}

	// The store limits newest-first; present chronologically.
	slices.Reverse(quarterly)
	slices.Reverse(annual)

	return &Bundle{
		Company:   *company,
		Quarterly: nonNil(quarterly),
		Annual:    nonNil(annual),
		News:      nonNil(news),
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
