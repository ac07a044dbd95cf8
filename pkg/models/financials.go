package models

// PeriodType distinguishes quarterly and annual reporting intervals.
type PeriodType string

const (
	PeriodQuarter PeriodType = "quarter"
	PeriodYear    PeriodType = "year"
)

// Period is a reporting interval for one company. It is unique on
// (CompanyID, PeriodEnd, PeriodType).
type Period struct {
	CompanyID  string     `json:"company_id"`
	PeriodEnd  string     `json:"period_end"` // YYYY-MM-DD
	PeriodType PeriodType `json:"period_type"`
	Label      string     `json:"label"` // e.g., "Dec 2025", "FY2025"
}

// Metrics is one financial-facts snapshot attached to a Period. Every
// ingestion appends a new snapshot; RunID and IngestedAt identify it.
type Metrics struct {
	Sales           *int64   `json:"sales"`            // ₹ crore
	OperatingProfit *int64   `json:"operating_profit"` // ₹ crore
	NetProfit       *int64   `json:"net_profit"`       // ₹ crore
	OPMPercent      *int64   `json:"opm_percent"`
	EPS             *float64 `json:"eps"`
	SourceURL       *string  `json:"source_url"`
	RunID           string   `json:"run_id,omitempty"`
	IngestedAt      int64    `json:"ingested_at,omitempty"` // unix nanoseconds
}

// PeriodMetrics pairs a Period with the Metrics snapshot selected for it.
type PeriodMetrics struct {
	Period
	Metrics
}
