package graph

import (
	"github.com/firmlens/firmlens/pkg/models"
)

// Params is a property map keyed by schema property names.
type Params = map[string]any

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func companyParams(c models.Company) Params {
	sources := c.DescriptionSources
	if sources == nil {
		sources = []string{}
	}
	return Params{
		"company_id":          c.CompanyID,
		"name":                c.Name,
		"sector":              deref(c.Sector),
		"industry":            deref(c.Industry),
		"market_cap_cr":       deref(c.MarketCapCr),
		"current_price":       deref(c.CurrentPrice),
		"description":         deref(c.Description),
		"description_sources": sources,
	}
}

// financialParams carries the period keys, the period label and the
// metrics snapshot for one upsert.
func financialParams(companyID string, pm models.PeriodMetrics) Params {
	return Params{
		"company_id":       companyID,
		"period_end":       pm.PeriodEnd,
		"period_type":      string(pm.PeriodType),
		"label":            pm.Label,
		"sales":            deref(pm.Sales),
		"operating_profit": deref(pm.OperatingProfit),
		"net_profit":       deref(pm.NetProfit),
		"opm_percent":      deref(pm.OPMPercent),
		"eps":              deref(pm.EPS),
		"source_url":       deref(pm.SourceURL),
		"run_id":           pm.RunID,
		"ingested_at":      pm.IngestedAt,
	}
}

func newsParams(companyID string, n models.NewsItem) Params {
	return Params{
		"company_id":   companyID,
		"news_id":      n.NewsID,
		"title":        deref(n.Title),
		"summary":      deref(n.Summary),
		"source":       deref(n.Source),
		"published_at": deref(n.PublishedAt),
		"url":          n.URL,
		"event_type":   string(n.EventType),
		"time_context": deref(n.TimeContext),
	}
}

// project copies the properties of spec out of params.
func project(spec NodeSpec, params Params) Params {
	out := make(Params, len(spec.Keys)+len(spec.Fields))
	for _, p := range spec.Properties() {
		out[p] = params[p]
	}
	return out
}

// --- decoding ---

func str(m Params, k string) string {
	s, _ := m[k].(string)
	return s
}

func strPtr(m Params, k string) *string {
	s, ok := m[k].(string)
	if !ok {
		return nil
	}
	return &s
}

func int64Ptr(m Params, k string) *int64 {
	var n int64
	switch v := m[k].(type) {
	case int64:
		n = v
	case int:
		n = int64(v)
	case float64:
		n = int64(v)
	default:
		return nil
	}
	return &n
}

func float64Ptr(m Params, k string) *float64 {
	var f float64
	switch v := m[k].(type) {
	case float64:
		f = v
	case int64:
		f = float64(v)
	case int:
		f = float64(v)
	default:
		return nil
	}
	return &f
}

func strList(m Params, k string) []string {
	switch v := m[k].(type) {
	case []string:
		return append([]string{}, v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

func decodeCompany(m Params) models.Company {
	return models.Company{
		CompanyID:          str(m, "company_id"),
		Name:               str(m, "name"),
		Sector:             strPtr(m, "sector"),
		Industry:           strPtr(m, "industry"),
		MarketCapCr:        int64Ptr(m, "market_cap_cr"),
		CurrentPrice:       int64Ptr(m, "current_price"),
		Description:        strPtr(m, "description"),
		DescriptionSources: strList(m, "description_sources"),
	}
}

func decodeSummary(m Params) models.CompanySummary {
	return models.CompanySummary{
		CompanyID: str(m, "company_id"),
		Name:      str(m, "name"),
		Sector:    strPtr(m, "sector"),
		Industry:  strPtr(m, "industry"),
	}
}

func decodePeriodMetrics(m Params) models.PeriodMetrics {
	var ingestedAt int64
	if p := int64Ptr(m, "ingested_at"); p != nil {
		ingestedAt = *p
	}
	return models.PeriodMetrics{
		Period: models.Period{
			CompanyID:  str(m, "company_id"),
			PeriodEnd:  str(m, "period_end"),
			PeriodType: models.PeriodType(str(m, "period_type")),
			Label:      str(m, "label"),
		},
		Metrics: models.Metrics{
			Sales:           int64Ptr(m, "sales"),
			OperatingProfit: int64Ptr(m, "operating_profit"),
			NetProfit:       int64Ptr(m, "net_profit"),
			OPMPercent:      int64Ptr(m, "opm_percent"),
			EPS:             float64Ptr(m, "eps"),
			SourceURL:       strPtr(m, "source_url"),
			RunID:           str(m, "run_id"),
			IngestedAt:      ingestedAt,
		},
	}
}

func decodeNews(m Params) models.NewsItem {
	return models.NewsItem{
		NewsID:      str(m, "news_id"),
		Title:       strPtr(m, "title"),
		Summary:     strPtr(m, "summary"),
		Source:      strPtr(m, "source"),
		PublishedAt: strPtr(m, "published_at"),
		URL:         str(m, "url"),
		EventType:   models.EventType(str(m, "event_type")),
		TimeContext: strPtr(m, "time_context"),
	}
}
