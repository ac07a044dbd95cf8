package graph

import (
	"context"
	"errors"

	"github.com/firmlens/firmlens/pkg/models"
)

var (
	// ErrNotFound is returned when the requested company is absent.
	ErrNotFound = errors.New("graph: company not found")

	// ErrUnavailable wraps connection and operation failures against the
	// store.
	ErrUnavailable = errors.New("graph: store unavailable")
)

// Writer applies idempotent upserts. Each call is one independent write.
type Writer interface {
	UpsertCompany(ctx context.Context, c models.Company) error
	// UpsertFinancial merges the period and appends a new metrics snapshot.
	UpsertFinancial(ctx context.Context, companyID string, pm models.PeriodMetrics) error
	UpsertNews(ctx context.Context, companyID string, n models.NewsItem) error
}

// Reader answers the bounded queries used by context assembly and the
// read API.
type Reader interface {
	// Company returns ErrNotFound if no company has the id.
	Company(ctx context.Context, companyID string) (*models.Company, error)
	// Periods returns up to limit periods of one type, newest first, each
	// with its latest metrics snapshot.
	Periods(ctx context.Context, companyID string, kind models.PeriodType, limit int) ([]models.PeriodMetrics, error)
	// News returns up to limit news items, newest first.
	News(ctx context.Context, companyID string, limit int) ([]models.NewsItem, error)
	// Companies lists companies ordered by name.
	Companies(ctx context.Context, limit int) ([]models.CompanySummary, error)
}

// Store is a graph backend with an explicit lifecycle.
type Store interface {
	Reader
	Writer
	Ping(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
	Close(ctx context.Context) error
}
