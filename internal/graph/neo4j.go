package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"github.com/rs/zerolog"

	"github.com/firmlens/firmlens/internal/config"
	"github.com/firmlens/firmlens/pkg/models"
)

// OpObserver receives the duration and outcome of every store operation.
type OpObserver interface {
	ObserveStoreOp(op string, d time.Duration, err error)
}

// Neo4jStore is the Store backed by a Neo4j server. It owns the driver
// (and its connection pool) and opens one session per operation.
type Neo4jStore struct {
	driver    neo4j.DriverWithContext
	database  string
	txTimeout time.Duration
	observer  OpObserver
	log       zerolog.Logger
}

var _ Store = (*Neo4jStore)(nil)

// Neo4jOption configures a Neo4jStore.
type Neo4jOption func(*Neo4jStore)

// WithObserver reports operation timings to o.
func WithObserver(o OpObserver) Neo4jOption {
	return func(s *Neo4jStore) { s.observer = o }
}

// WithLogger sets the store logger.
func WithLogger(l zerolog.Logger) Neo4jOption {
	return func(s *Neo4jStore) { s.log = l }
}

// NewNeo4jStore creates the driver. No connection is made until the first
// operation; call Ping to verify connectivity.
func NewNeo4jStore(cfg config.StoreConfig, opts ...Neo4jOption) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4jconfig.Config) {
			if cfg.MaxPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxPoolSize
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create driver for %s: %w", ErrUnavailable, cfg.URI, err)
	}

	s := &Neo4jStore{
		driver:    driver,
		database:  cfg.Database,
		txTimeout: cfg.TxTimeout,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Neo4jStore) txConfig() []func(*neo4j.TransactionConfig) {
	if s.txTimeout <= 0 {
		return nil
	}
	return []func(*neo4j.TransactionConfig){neo4j.WithTxTimeout(s.txTimeout)}
}

func (s *Neo4jStore) observe(op string, start time.Time, err error) {
	d := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveStoreOp(op, d, err)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("op", op).Dur("took", d).Msg("store operation failed")
		return
	}
	s.log.Debug().Str("op", op).Dur("took", d).Msg("store operation")
}

// write runs one statement in its own session and write transaction.
func (s *Neo4jStore) write(ctx context.Context, op, cypher string, params Params) (err error) {
	start := time.Now()
	defer func() { s.observe(op, start, err) }()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	}, s.txConfig()...)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
	}
	return nil
}

// read runs one statement in its own session and read transaction and
// returns every row as a property map.
func (s *Neo4jStore) read(ctx context.Context, op, cypher string, params Params) (rows []Params, err error) {
	start := time.Now()
	defer func() { s.observe(op, start, err) }()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]Params, len(records))
		for i, r := range records {
			rows[i] = r.AsMap()
		}
		return rows, nil
	}, s.txConfig()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
	}
	return out.([]Params), nil
}

func (s *Neo4jStore) UpsertCompany(ctx context.Context, c models.Company) error {
	return s.write(ctx, "upsert_company", upsertCompanyCypher, companyParams(c))
}

func (s *Neo4jStore) UpsertFinancial(ctx context.Context, companyID string, pm models.PeriodMetrics) error {
	return s.write(ctx, "upsert_financial", upsertFinancialCypher, financialParams(companyID, pm))
}

func (s *Neo4jStore) UpsertNews(ctx context.Context, companyID string, n models.NewsItem) error {
	return s.write(ctx, "upsert_news", upsertNewsCypher, newsParams(companyID, n))
}

func (s *Neo4jStore) Company(ctx context.Context, companyID string) (*models.Company, error) {
	rows, err := s.read(ctx, "company", companyCypher, Params{"company_id": companyID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, companyID)
	}
	c := decodeCompany(rows[0])
	return &c, nil
}

func (s *Neo4jStore) Periods(ctx context.Context, companyID string, kind models.PeriodType, limit int) ([]models.PeriodMetrics, error) {
	rows, err := s.read(ctx, "periods", periodsCypher, Params{
		"company_id":  companyID,
		"period_type": string(kind),
		"limit":       int64(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.PeriodMetrics, len(rows))
	for i, r := range rows {
		out[i] = decodePeriodMetrics(r)
	}
	return out, nil
}

func (s *Neo4jStore) News(ctx context.Context, companyID string, limit int) ([]models.NewsItem, error) {
	rows, err := s.read(ctx, "news", newsCypher, Params{
		"company_id": companyID,
		"limit":      int64(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.NewsItem, len(rows))
	for i, r := range rows {
		out[i] = decodeNews(r)
	}
	return out, nil
}

func (s *Neo4jStore) Companies(ctx context.Context, limit int) ([]models.CompanySummary, error) {
	rows, err := s.read(ctx, "companies", companiesCypher, Params{"limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	out := make([]models.CompanySummary, len(rows))
	for i, r := range rows {
		out[i] = decodeSummary(r)
	}
	return out, nil
}

// Ping verifies connectivity and runs a trivial query.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: verify connectivity: %w", ErrUnavailable, err)
	}
	_, err := s.read(ctx, "ping", pingCypher, nil)
	return err
}

// EnsureSchema creates the uniqueness constraints if they are missing.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range constraintStatements() {
		if err := s.write(ctx, "ensure_schema", stmt, nil); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the driver and its connection pool.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
