package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firmlens/firmlens/pkg/models"
)

// flakyStore fails Ping or the nth write.
type flakyStore struct {
	*MemoryStore
	pingErr  error
	failAt   int
	writes   int
	attempts int
}

func (f *flakyStore) Ping(ctx context.Context) error {
	if f.pingErr != nil {
		return f.pingErr
	}
	return f.MemoryStore.Ping(ctx)
}

func (f *flakyStore) step() error {
	f.attempts++
	if f.failAt > 0 && f.attempts == f.failAt {
		return errors.New("connection reset")
	}
	f.writes++
	return nil
}

func (f *flakyStore) UpsertCompany(ctx context.Context, c models.Company) error {
	if err := f.step(); err != nil {
		return err
	}
	return f.MemoryStore.UpsertCompany(ctx, c)
}

func (f *flakyStore) UpsertFinancial(ctx context.Context, id string, pm models.PeriodMetrics) error {
	if err := f.step(); err != nil {
		return err
	}
	return f.MemoryStore.UpsertFinancial(ctx, id, pm)
}

func (f *flakyStore) UpsertNews(ctx context.Context, id string, n models.NewsItem) error {
	if err := f.step(); err != nil {
		return err
	}
	return f.MemoryStore.UpsertNews(ctx, id, n)
}

func acmeSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Company: models.Company{CompanyID: "ACME_CORP", Name: "Acme Corp"},
		Quarterly: []models.PeriodMetrics{
			quarter("2023-12-31", "Dec 2023", 900),
			quarter("2024-03-31", "Mar 2024", 1000),
		},
		Annual: []models.PeriodMetrics{{
			Period: models.Period{PeriodEnd: "2024-03-31", PeriodType: models.PeriodYear, Label: "FY2024"},
		}},
		News: []models.NewsItem{news("https://x/1", "Acme wins contract", "2024-04-02")},
	}
}

func fixedIngestor(store IngestStore, at time.Time, ids ...string) *Ingestor {
	n := 0
	return NewIngestor(store,
		WithClock(func() time.Time { return at }),
		WithRunIDs(func() string {
			id := ids[n%len(ids)]
			n++
			return id
		}),
	)
}

func TestIngestWritesEverything(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	at := time.Date(2024, 4, 5, 10, 0, 0, 0, time.UTC)

	report, err := fixedIngestor(s, at, "run-1").Ingest(ctx, acmeSnapshot())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.RunID != "run-1" || report.CompanyID != "ACME_CORP" {
		t.Errorf("report: got %+v", report)
	}
	if report.Companies != 1 || report.Periods != 3 || report.News != 1 || report.Writes() != 5 {
		t.Errorf("report counts: got %+v", report)
	}

	rows, _ := s.Periods(ctx, "ACME_CORP", models.PeriodQuarter, 10)
	if len(rows) != 2 {
		t.Fatalf("quarters: got %d", len(rows))
	}
	if rows[0].RunID != "run-1" || rows[0].IngestedAt < at.UnixNano() {
		t.Errorf("metrics stamp: got run %q at %d", rows[0].RunID, rows[0].IngestedAt)
	}
}

func TestIngestTwiceAppendsMetricsOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	t0 := time.Date(2024, 4, 5, 10, 0, 0, 0, time.UTC)

	if _, err := fixedIngestor(s, t0, "run-1").Ingest(ctx, acmeSnapshot()); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	snap := acmeSnapshot()
	snap.Quarterly[1].Sales = models.Ptr(int64(1050))
	if _, err := fixedIngestor(s, t0.Add(time.Hour), "run-2").Ingest(ctx, snap); err != nil {
		t.Fatalf("second Ingest: %v", err)
	}

	if got := s.NodeCount(PeriodNode.Label); got != 3 {
		t.Errorf("period nodes: got %d, want 3", got)
	}
	if got := s.NodeCount(MetricsNode.Label); got != 6 {
		t.Errorf("metrics nodes: got %d, want 6", got)
	}
	if got := s.NodeCount(NewsNode.Label); got != 1 {
		t.Errorf("news nodes: got %d, want 1", got)
	}

	rows, _ := s.Periods(ctx, "ACME_CORP", models.PeriodQuarter, 1)
	if rows[0].RunID != "run-2" || *rows[0].Sales != 1050 {
		t.Errorf("latest run should be read back, got %+v", rows[0])
	}
}

func TestIngestSameInstantLatestRunWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	at := time.Date(2024, 4, 5, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		snap := acmeSnapshot()
		snap.Quarterly[1].Sales = models.Ptr(int64(1000 + i))
		if _, err := fixedIngestor(s, at, id).Ingest(ctx, snap); err != nil {
			t.Fatalf("Ingest %s: %v", id, err)
		}
	}

	rows, _ := s.Periods(ctx, "ACME_CORP", models.PeriodQuarter, 2)
	if rows[0].RunID != "run-c" || *rows[0].Sales != 1002 {
		t.Errorf("latest run should be read back, got run %q sales %d", rows[0].RunID, *rows[0].Sales)
	}
	if rows[1].IngestedAt >= rows[0].IngestedAt {
		t.Errorf("stamps within a run should increase: %d then %d", rows[1].IngestedAt, rows[0].IngestedAt)
	}

	a, b := nextStamp(at), nextStamp(at)
	if b <= a || a < at.UnixNano() {
		t.Errorf("nextStamp(%d): got %d then %d", at.UnixNano(), a, b)
	}
}

func TestIngestUnreachableStoreWritesNothing(t *testing.T) {
	s := &flakyStore{MemoryStore: NewMemoryStore(), pingErr: errors.New("dial tcp: refused")}

	report, err := NewIngestor(s).Ingest(context.Background(), acmeSnapshot())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if s.attempts != 0 || report.Writes() != 0 {
		t.Errorf("no writes expected, got %d attempts", s.attempts)
	}
}

func TestIngestStopsAtFirstFailure(t *testing.T) {
	s := &flakyStore{MemoryStore: NewMemoryStore(), failAt: 3}

	report, err := NewIngestor(s).Ingest(context.Background(), acmeSnapshot())
	if err == nil {
		t.Fatal("expected failure")
	}
	if s.attempts != 3 {
		t.Errorf("attempts: got %d, want 3 (stop after failing write)", s.attempts)
	}
	if report.Companies != 1 || report.Periods != 1 || report.News != 0 {
		t.Errorf("partial report: got %+v", report)
	}

	// Earlier writes remain and a re-run completes.
	if _, err := s.MemoryStore.Company(context.Background(), "ACME_CORP"); err != nil {
		t.Errorf("company from partial run should exist: %v", err)
	}
	s.failAt = 0
	if _, err := NewIngestor(s).Ingest(context.Background(), acmeSnapshot()); err != nil {
		t.Errorf("re-run: %v", err)
	}
}
