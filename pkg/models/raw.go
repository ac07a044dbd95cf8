package models

// RawFields is the text extracted from a company page before
// normalization. Empty strings mean the value was absent.
type RawFields struct {
	CompanyName        string   `json:"company_name"`
	Sector             string   `json:"sector"`
	Industry           string   `json:"industry"`
	MarketCap          string   `json:"market_cap"`
	CurrentPrice       string   `json:"current_price"`
	Description        string   `json:"description"`
	DescriptionSources []string `json:"description_sources"`
	Quarterly          RawTable `json:"quarterly"`
	Annual             RawTable `json:"annual"`
}

// RawTable is one results table. Periods drives iteration; the metric
// slices are index-aligned with it but may be shorter.
type RawTable struct {
	Periods         []string `json:"periods"` // e.g., "Dec 2025" or "Mar 2025"
	Sales           []string `json:"sales"`
	OperatingProfit []string `json:"operating_profit"`
	OPMPercent      []string `json:"opm_percent"`
	NetProfit       []string `json:"net_profit"`
	EPS             []string `json:"eps"`
	Sources         []string `json:"sources"`
}

// RawNews is one article as returned by a news provider.
type RawNews struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	URL         string `json:"url"`
}
