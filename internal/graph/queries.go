package graph

import "strings"

func cypher(clauses ...string) string {
	return strings.Join(clauses, "\n")
}

var (
	pingCypher = "RETURN 1 AS ok"

	upsertCompanyCypher = cypher(
		CompanyNode.Merge("c"),
		CompanyNode.Set("c"),
	)

	// The company is merged too so a period is never left unlinked.
	upsertFinancialCypher = cypher(
		PeriodNode.Merge("p"),
		PeriodNode.Set("p"),
		MetricsNode.Create("m"),
		CompanyNode.Merge("c"),
		MergeRel("c", RelHasPeriod, "p"),
		MergeRel("p", RelHasMetrics, "m"),
	)

	upsertNewsCypher = cypher(
		NewsNode.Merge("nw"),
		NewsNode.Set("nw"),
		CompanyNode.Merge("c"),
		MergeRel("c", RelMentionedIn, "nw"),
	)

	companyCypher = cypher(
		CompanyNode.Match("c"),
		"RETURN "+CompanyNode.Project("c"),
	)

	// Each period keeps the metrics snapshot with the latest ingested_at.
	// Snapshots written before stamps existed sort last.
	periodsCypher = cypher(
		"MATCH (:"+CompanyNode.Label+" {company_id: $company_id})-[:"+RelHasPeriod+"]->"+
			"(p:"+PeriodNode.Label+" {period_type: $period_type})-[:"+RelHasMetrics+"]->(m:"+MetricsNode.Label+")",
		"WITH p, m ORDER BY coalesce(m.ingested_at, 0) DESC",
		"WITH p, collect(m)[0] AS m",
		"RETURN "+PeriodNode.Project("p")+", "+MetricsNode.Project("m"),
		"ORDER BY p.period_end DESC",
		"LIMIT $limit",
	)

	newsCypher = cypher(
		"MATCH (:"+CompanyNode.Label+" {company_id: $company_id})-[:"+RelMentionedIn+"]->(nw:"+NewsNode.Label+")",
		"RETURN "+NewsNode.Project("nw"),
		"ORDER BY coalesce(nw.published_at, '') DESC, nw.news_id ASC",
		"LIMIT $limit",
	)

	companiesCypher = cypher(
		"MATCH (c:"+CompanyNode.Label+")",
		"RETURN c.company_id AS company_id, c.name AS name, c.sector AS sector, c.industry AS industry",
		"ORDER BY c.name",
		"LIMIT $limit",
	)
)

// constraintStatements returns the schema constraints in order.
func constraintStatements() []string {
	var out []string
	for _, spec := range Schema {
		if c := spec.Constraint(); c != "" {
			out = append(out, c)
		}
	}
	return out
}
