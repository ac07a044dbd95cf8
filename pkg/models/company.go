// Package models defines the core data structures used throughout FirmLens.
package models

// Company is the tracked subject. CompanyID is derived from Name and is
// globally unique.
type Company struct {
	CompanyID          string   `json:"company_id"`
	Name               string   `json:"name"`
	Sector             *string  `json:"sector"`
	Industry           *string  `json:"industry"`
	MarketCapCr        *int64   `json:"market_cap_cr"` // ₹ crore
	CurrentPrice       *int64   `json:"current_price"`
	Description        *string  `json:"description"`
	DescriptionSources []string `json:"description_sources"`
}

// CompanySummary is a listing row for the companies endpoint.
type CompanySummary struct {
	CompanyID string  `json:"company_id"`
	Name      string  `json:"name"`
	Sector    *string `json:"sector"`
	Industry  *string `json:"industry"`
}

// Snapshot is one fully normalized company page plus its news, ready to be
// written to the graph.
type Snapshot struct {
	Company   Company         `json:"company"`
	Quarterly []PeriodMetrics `json:"quarterly"`
	Annual    []PeriodMetrics `json:"annual"`
	News      []NewsItem      `json:"news"`
}

// Ptr returns a pointer to v. Used for nullable record fields.
func Ptr[T any](v T) *T {
	return &v
}
