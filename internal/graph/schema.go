// Package graph persists FirmLens records in a property graph and reads
// them back. The schema below is the single definition of labels, keys,
// properties and relationships; every Cypher statement is generated from
// it, and the in-memory backend derives node identity from the same keys.
package graph

import (
	"fmt"
	"strings"
)

// NodeSpec declares one node label: its unique key properties and the
// value properties written on upsert.
type NodeSpec struct {
	Label  string
	Keys   []string
	Fields []string
}

// Relationship types.
const (
	RelHasPeriod   = "HAS_PERIOD"
	RelHasMetrics  = "HAS_METRICS"
	RelMentionedIn = "MENTIONED_IN"
)

var (
	CompanyNode = NodeSpec{
		Label: "Company",
		Keys:  []string{"company_id"},
		Fields: []string{
			"name", "sector", "industry", "market_cap_cr", "current_price",
			"description", "description_sources",
		},
	}

	PeriodNode = NodeSpec{
		Label:  "FinancialPeriod",
		Keys:   []string{"company_id", "period_end", "period_type"},
		Fields: []string{"label"},
	}

	// MetricsNode has no keys: every write creates a new node.
	MetricsNode = NodeSpec{
		Label: "FinancialMetrics",
		Fields: []string{
			"sales", "operating_profit", "net_profit", "opm_percent", "eps",
			"source_url", "run_id", "ingested_at",
		},
	}

	NewsNode = NodeSpec{
		Label: "News",
		Keys:  []string{"news_id"},
		Fields: []string{
			"title", "summary", "source", "published_at", "url",
			"event_type", "time_context",
		},
	}
)

// Properties returns keys followed by fields.
func (n NodeSpec) Properties() []string {
	out := make([]string, 0, len(n.Keys)+len(n.Fields))
	out = append(out, n.Keys...)
	return append(out, n.Fields...)
}

// keyMap renders "{k: $k, ...}" for the given property names.
func keyMap(props []string) string {
	parts := make([]string, len(props))
	for i, p := range props {
		parts[i] = fmt.Sprintf("%s: $%s", p, p)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Merge renders a MERGE clause matching the node on its keys.
func (n NodeSpec) Merge(v string) string {
	return fmt.Sprintf("MERGE (%s:%s %s)", v, n.Label, keyMap(n.Keys))
}

// Match renders a MATCH clause on the node keys.
func (n NodeSpec) Match(v string) string {
	return fmt.Sprintf("MATCH (%s:%s %s)", v, n.Label, keyMap(n.Keys))
}

// Set renders a SET clause assigning every field from its parameter.
func (n NodeSpec) Set(v string) string {
	parts := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		parts[i] = fmt.Sprintf("%s.%s = $%s", v, f, f)
	}
	return "SET " + strings.Join(parts, ", ")
}

// Create renders a CREATE clause carrying every property.
func (n NodeSpec) Create(v string) string {
	return fmt.Sprintf("CREATE (%s:%s %s)", v, n.Label, keyMap(n.Properties()))
}

// Project renders "v.p AS p, ..." for every property.
func (n NodeSpec) Project(v string) string {
	props := n.Properties()
	parts := make([]string, len(props))
	for i, p := range props {
		parts[i] = fmt.Sprintf("%s.%s AS %s", v, p, p)
	}
	return strings.Join(parts, ", ")
}

// Constraint renders an idempotent uniqueness constraint on the node keys.
// Nodes without keys have no constraint.
func (n NodeSpec) Constraint() string {
	if len(n.Keys) == 0 {
		return ""
	}
	props := make([]string, len(n.Keys))
	for i, k := range n.Keys {
		props[i] = "n." + k
	}
	return fmt.Sprintf("CREATE CONSTRAINT %s_key IF NOT EXISTS FOR (n:%s) REQUIRE (%s) IS UNIQUE",
		strings.ToLower(n.Label), n.Label, strings.Join(props, ", "))
}

// MergeRel renders a relationship MERGE between two bound variables.
func MergeRel(from, rel, to string) string {
	return fmt.Sprintf("MERGE (%s)-[:%s]->(%s)", from, rel, to)
}

// Schema lists every node spec, in dependency order.
var Schema = []NodeSpec{CompanyNode, PeriodNode, MetricsNode, NewsNode}
