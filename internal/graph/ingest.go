package graph

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/firmlens/firmlens/pkg/models"
)

// IngestStore is what the Ingestor needs from a backend.
type IngestStore interface {
	Writer
	Ping(ctx context.Context) error
}

// Report describes what one ingestion run applied. On failure it holds the
// operations that succeeded before the failing one.
type Report struct {
	RunID      string    `json:"run_id"`
	CompanyID  string    `json:"company_id"`
	Companies  int       `json:"companies"`
	Periods    int       `json:"periods"`
	News       int       `json:"news"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Writes returns the number of upserts applied.
func (r *Report) Writes() int {
	return r.Companies + r.Periods + r.News
}

// Ingestor writes normalized snapshots as a sequence of independent
// upserts. There is no transaction spanning a run: a failure stops the run
// and leaves earlier writes in place, and re-running is safe.
type Ingestor struct {
	store    IngestStore
	log      zerolog.Logger
	now      func() time.Time
	newRunID func() string
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithIngestLogger sets the ingestor logger.
func WithIngestLogger(l zerolog.Logger) IngestorOption {
	return func(i *Ingestor) { i.log = l }
}

// WithClock overrides the clock used to stamp metrics snapshots.
func WithClock(now func() time.Time) IngestorOption {
	return func(i *Ingestor) { i.now = now }
}

// WithRunIDs overrides the run id generator.
func WithRunIDs(next func() string) IngestorOption {
	return func(i *Ingestor) { i.newRunID = next }
}

// NewIngestor creates an Ingestor writing to store.
func NewIngestor(store IngestStore, opts ...IngestorOption) *Ingestor {
	i := &Ingestor{
		store:    store,
		log:      zerolog.Nop(),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

var lastStamp atomic.Int64

// nextStamp returns t in unix nanoseconds, bumped past every stamp handed
// out before it so two snapshots of one period never share ingested_at.
func nextStamp(t time.Time) int64 {
	for {
		last := lastStamp.Load()
		ns := t.UnixNano()
		if ns <= last {
			ns = last + 1
		}
		if lastStamp.CompareAndSwap(last, ns) {
			return ns
		}
	}
}

// Ingest writes the company, every period with a fresh metrics snapshot,
// and every news item. The store must answer a ping first; otherwise the
// run fails with ErrUnavailable before any write.
func (i *Ingestor) Ingest(ctx context.Context, snap *models.Snapshot) (*Report, error) {
	companyID := snap.Company.CompanyID
	stamp := i.now().UTC()
	report := &Report{
		RunID:      i.newRunID(),
		CompanyID:  companyID,
		IngestedAt: stamp,
	}
	log := i.log.With().Str("run_id", report.RunID).Str("company_id", companyID).Logger()

	if err := i.store.Ping(ctx); err != nil {
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return report, fmt.Errorf("ingest %s: %w", companyID, err)
	}

	if err := i.store.UpsertCompany(ctx, snap.Company); err != nil {
		return report, fmt.Errorf("ingest %s: company: %w", companyID, err)
	}
	report.Companies++

	periods := make([]models.PeriodMetrics, 0, len(snap.Quarterly)+len(snap.Annual))
	periods = append(periods, snap.Quarterly...)
	periods = append(periods, snap.Annual...)
	for _, pm := range periods {
		pm.RunID = report.RunID
		pm.IngestedAt = nextStamp(stamp)
		if err := i.store.UpsertFinancial(ctx, companyID, pm); err != nil {
			return report, fmt.Errorf("ingest %s: period %s %s: %w", companyID, pm.PeriodType, pm.PeriodEnd, err)
		}
		report.Periods++
	}

	for _, n := range snap.News {
		if err := i.store.UpsertNews(ctx, companyID, n); err != nil {
			return report, fmt.Errorf("ingest %s: news %s: %w", companyID, n.NewsID, err)
		}
		report.News++
	}

	log.Info().
		Int("periods", report.Periods).
		Int("news", report.News).
		Msg("ingestion complete")
	return report, nil
}
