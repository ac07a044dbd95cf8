package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/firmlens/firmlens/pkg/models"
)

type memNode struct {
	props Params
	seq   uint64 // creation order
}

// MemoryStore is an in-process Store with the same merge, append and
// ordering semantics as the Neo4j backend. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	seq    uint64
	closed bool

	nodes     map[string]map[string]*memNode // label → key → node
	metrics   map[string][]*memNode           // period key → snapshots
	hasPeriod map[string]map[string]struct{}  // company key → period keys
	mentions  map[string]map[string]struct{}  // company key → news keys
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		nodes:     make(map[string]map[string]*memNode),
		metrics:   make(map[string][]*memNode),
		hasPeriod: make(map[string]map[string]struct{}),
		mentions:  make(map[string]map[string]struct{}),
	}
	for _, spec := range Schema {
		s.nodes[spec.Label] = make(map[string]*memNode)
	}
	return s
}

var _ Store = (*MemoryStore)(nil)

func nodeKey(spec NodeSpec, params Params) string {
	parts := make([]string, len(spec.Keys))
	for i, k := range spec.Keys {
		parts[i] = fmt.Sprint(params[k])
	}
	return strings.Join(parts, "\x1f")
}

// merge finds or creates the node keyed by params and returns its key.
// Must be called with mu held.
func (s *MemoryStore) merge(spec NodeSpec, params Params) (string, *memNode) {
	key := nodeKey(spec, params)
	if n, ok := s.nodes[spec.Label][key]; ok {
		return key, n
	}
	s.seq++
	n := &memNode{props: make(Params, len(spec.Keys)), seq: s.seq}
	for _, k := range spec.Keys {
		n.props[k] = params[k]
	}
	s.nodes[spec.Label][key] = n
	return key, n
}

func setFields(spec NodeSpec, n *memNode, params Params) {
	for _, f := range spec.Fields {
		n.props[f] = params[f]
	}
}

func link(rels map[string]map[string]struct{}, from, to string) {
	if rels[from] == nil {
		rels[from] = make(map[string]struct{})
	}
	rels[from][to] = struct{}{}
}

func (s *MemoryStore) checkOpen(op string) error {
	if s.closed {
		return fmt.Errorf("%w: %s: store closed", ErrUnavailable, op)
	}
	return nil
}

func (s *MemoryStore) UpsertCompany(_ context.Context, c models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("upsert_company"); err != nil {
		return err
	}
	params := companyParams(c)
	_, n := s.merge(CompanyNode, params)
	setFields(CompanyNode, n, params)
	return nil
}

func (s *MemoryStore) UpsertFinancial(_ context.Context, companyID string, pm models.PeriodMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("upsert_financial"); err != nil {
		return err
	}
	params := financialParams(companyID, pm)

	pkey, p := s.merge(PeriodNode, params)
	setFields(PeriodNode, p, params)

	s.seq++
	m := &memNode{props: project(MetricsNode, params), seq: s.seq}
	s.metrics[pkey] = append(s.metrics[pkey], m)

	ckey, _ := s.merge(CompanyNode, params)
	link(s.hasPeriod, ckey, pkey)
	return nil
}

func (s *MemoryStore) UpsertNews(_ context.Context, companyID string, item models.NewsItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("upsert_news"); err != nil {
		return err
	}
	params := newsParams(companyID, item)

	nkey, n := s.merge(NewsNode, params)
	setFields(NewsNode, n, params)

	ckey, _ := s.merge(CompanyNode, params)
	link(s.mentions, ckey, nkey)
	return nil
}

func (s *MemoryStore) Company(_ context.Context, companyID string) (*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen("company"); err != nil {
		return nil, err
	}
	n, ok := s.nodes[CompanyNode.Label][nodeKey(CompanyNode, Params{"company_id": companyID})]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, companyID)
	}
	c := decodeCompany(n.props)
	return &c, nil
}

// latest picks the snapshot with the greatest ingested_at; on equal stamps
// the most recently created wins.
func latest(snaps []*memNode) *memNode {
	var best *memNode
	var bestAt int64
	for _, m := range snaps {
		var at int64
		if p := int64Ptr(m.props, "ingested_at"); p != nil {
			at = *p
		}
		if best == nil || at > bestAt || (at == bestAt && m.seq > best.seq) {
			best, bestAt = m, at
		}
	}
	return best
}

func (s *MemoryStore) Periods(_ context.Context, companyID string, kind models.PeriodType, limit int) ([]models.PeriodMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen("periods"); err != nil {
		return nil, err
	}

	ckey := nodeKey(CompanyNode, Params{"company_id": companyID})
	var rows []models.PeriodMetrics
	for pkey := range s.hasPeriod[ckey] {
		p := s.nodes[PeriodNode.Label][pkey]
		if p == nil || p.props["period_type"] != string(kind) {
			continue
		}
		m := latest(s.metrics[pkey])
		if m == nil {
			continue
		}
		row := make(Params, len(p.props)+len(m.props))
		for k, v := range p.props {
			row[k] = v
		}
		for k, v := range m.props {
			row[k] = v
		}
		rows = append(rows, decodePeriodMetrics(row))
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].PeriodEnd > rows[j].PeriodEnd })
	return truncate(rows, limit), nil
}

func (s *MemoryStore) News(_ context.Context, companyID string, limit int) ([]models.NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen("news"); err != nil {
		return nil, err
	}

	ckey := nodeKey(CompanyNode, Params{"company_id": companyID})
	items := make([]models.NewsItem, 0, len(s.mentions[ckey]))
	for nkey := range s.mentions[ckey] {
		if n := s.nodes[NewsNode.Label][nkey]; n != nil {
			items = append(items, decodeNews(n.props))
		}
	}

	sort.Slice(items, func(i, j int) bool {
		a, b := published(items[i]), published(items[j])
		if a != b {
			return a > b
		}
		return items[i].NewsID < items[j].NewsID
	})
	return truncate(items, limit), nil
}

func published(n models.NewsItem) string {
	if n.PublishedAt == nil {
		return ""
	}
	return *n.PublishedAt
}

func (s *MemoryStore) Companies(_ context.Context, limit int) ([]models.CompanySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen("companies"); err != nil {
		return nil, err
	}

	out := make([]models.CompanySummary, 0, len(s.nodes[CompanyNode.Label]))
	for _, n := range s.nodes[CompanyNode.Label] {
		out = append(out, decodeSummary(n.props))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CompanyID < out[j].CompanyID
	})
	return truncate(out, limit), nil
}

func truncate[T any](s []T, limit int) []T {
	if limit < 0 {
		limit = 0
	}
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkOpen("ping")
}

// EnsureSchema is a no-op: node keys are enforced by construction.
func (s *MemoryStore) EnsureSchema(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkOpen("ensure_schema")
}

func (s *MemoryStore) Close(context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// NodeCount returns the number of nodes with the given label.
func (s *MemoryStore) NodeCount(label string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if label == MetricsNode.Label {
		return s.metricsCount()
	}
	return len(s.nodes[label])
}

// RelCount returns the number of relationships of the given type.
func (s *MemoryStore) RelCount(rel string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := func(rels map[string]map[string]struct{}) int {
		total := 0
		for _, to := range rels {
			total += len(to)
		}
		return total
	}
	switch rel {
	case RelHasPeriod:
		return count(s.hasPeriod)
	case RelMentionedIn:
		return count(s.mentions)
	case RelHasMetrics:
		return s.metricsCount()
	}
	return 0
}

// metricsCount counts metrics snapshots; each has exactly one HAS_METRICS
// edge. Must be called with mu held.
func (s *MemoryStore) metricsCount() int {
	total := 0
	for _, snaps := range s.metrics {
		total += len(snaps)
	}
	return total
}
