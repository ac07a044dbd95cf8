package graph

import (
	"strings"
	"testing"
)

// ── Clause builders ──

func TestNodeSpecClauses(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"merge company", CompanyNode.Merge("c"), "MERGE (c:Company {company_id: $company_id})"},
		{"merge period", PeriodNode.Merge("p"),
			"MERGE (p:FinancialPeriod {company_id: $company_id, period_end: $period_end, period_type: $period_type})"},
		{"set period", PeriodNode.Set("p"), "SET p.label = $label"},
		{"match news", NewsNode.Match("nw"), "MATCH (nw:News {news_id: $news_id})"},
		{"rel", MergeRel("c", RelHasPeriod, "p"), "MERGE (c)-[:HAS_PERIOD]->(p)"},
		{"constraint company", CompanyNode.Constraint(),
			"CREATE CONSTRAINT company_key IF NOT EXISTS FOR (n:Company) REQUIRE (n.company_id) IS UNIQUE"},
		{"constraint metrics", MetricsNode.Constraint(), ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got  %q\nwant %q", tc.got, tc.want)
			}
		})
	}
}

func TestCreateCarriesEveryMetricsField(t *testing.T) {
	create := MetricsNode.Create("m")
	if !strings.HasPrefix(create, "CREATE (m:FinancialMetrics {") {
		t.Fatalf("Create: got %q", create)
	}
	for _, f := range MetricsNode.Fields {
		if !strings.Contains(create, f+": $"+f) {
			t.Errorf("Create missing %s: %q", f, create)
		}
	}
}

func TestProjectIncludesKeysAndFields(t *testing.T) {
	proj := CompanyNode.Project("c")
	if !strings.HasPrefix(proj, "c.company_id AS company_id, c.name AS name") {
		t.Errorf("Project: got %q", proj)
	}
	if strings.Count(proj, " AS ") != len(CompanyNode.Properties()) {
		t.Errorf("Project: got %d columns, want %d", strings.Count(proj, " AS "), len(CompanyNode.Properties()))
	}
}

// ── Generated statements ──

func TestUpsertFinancialAppendsMetrics(t *testing.T) {
	q := upsertFinancialCypher
	for _, want := range []string{
		"MERGE (p:FinancialPeriod",
		"SET p.label = $label",
		"CREATE (m:FinancialMetrics",
		"MERGE (c:Company {company_id: $company_id})",
		"MERGE (c)-[:HAS_PERIOD]->(p)",
		"MERGE (p)-[:HAS_METRICS]->(m)",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("upsertFinancialCypher missing %q:\n%s", want, q)
		}
	}
	if strings.Contains(q, "MERGE (m:") {
		t.Error("metrics must be created, never merged")
	}
}

func TestReadStatementsAreBounded(t *testing.T) {
	for name, q := range map[string]string{
		"periods":   periodsCypher,
		"news":      newsCypher,
		"companies": companiesCypher,
	} {
		if !strings.HasSuffix(q, "LIMIT $limit") {
			t.Errorf("%s query is not bounded:\n%s", name, q)
		}
	}
	if !strings.Contains(periodsCypher, "ORDER BY coalesce(m.ingested_at, 0) DESC") {
		t.Errorf("periods query must pick the latest snapshot:\n%s", periodsCypher)
	}
	if !strings.Contains(periodsCypher, "ORDER BY p.period_end DESC") {
		t.Errorf("periods query must retrieve newest first:\n%s", periodsCypher)
	}
}

func TestConstraintStatements(t *testing.T) {
	stmts := constraintStatements()
	if len(stmts) != 3 {
		t.Fatalf("constraintStatements: got %d, want 3", len(stmts))
	}
	if !strings.Contains(stmts[1], "REQUIRE (n.company_id, n.period_end, n.period_type) IS UNIQUE") {
		t.Errorf("period constraint: got %q", stmts[1])
	}
}
