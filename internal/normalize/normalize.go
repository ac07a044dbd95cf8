package normalize

import (
	"fmt"
	"strings"

	"github.com/firmlens/firmlens/pkg/models"
)

// Normalize converts one scraped company page into a snapshot. It fails
// with ErrMalformed before producing anything if any value breaks a
// parsing contract. The returned snapshot carries no news.
func Normalize(raw models.RawFields) (*models.Snapshot, error) {
	name := strings.TrimSpace(raw.CompanyName)
	if name == "" {
		return nil, fmt.Errorf("%w: company name is empty", ErrMalformed)
	}
	companyID := CompanyID(name)

	sources := make([]string, 0, len(raw.DescriptionSources))
	for _, s := range raw.DescriptionSources {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}

	snap := &models.Snapshot{
		Company: models.Company{
			CompanyID:          companyID,
			Name:               name,
			Sector:             text(raw.Sector),
			Industry:           text(raw.Industry),
			MarketCapCr:        CleanNumber(raw.MarketCap),
			CurrentPrice:       CleanNumber(raw.CurrentPrice),
			Description:        text(raw.Description),
			DescriptionSources: sources,
		},
	}

	var err error
	if snap.Quarterly, err = normalizeTable(companyID, models.PeriodQuarter, raw.Quarterly); err != nil {
		return nil, fmt.Errorf("quarterly results: %w", err)
	}
	if snap.Annual, err = normalizeTable(companyID, models.PeriodYear, raw.Annual); err != nil {
		return nil, fmt.Errorf("annual results: %w", err)
	}
	return snap, nil
}

func normalizeTable(companyID string, kind models.PeriodType, t models.RawTable) ([]models.PeriodMetrics, error) {
	rows := make([]models.PeriodMetrics, 0, len(t.Periods))
	for i, label := range t.Periods {
		label = strings.TrimSpace(label)

		period := models.Period{CompanyID: companyID, PeriodType: kind, Label: label}
		switch kind {
		case models.PeriodQuarter:
			end, err := QuarterEnd(label)
			if err != nil {
				return nil, err
			}
			period.PeriodEnd = end
		default:
			end, display, err := YearEnd(label)
			if err != nil {
				return nil, err
			}
			period.PeriodEnd, period.Label = end, display
		}

		opm, err := CleanPercent(at(t.OPMPercent, i))
		if err != nil {
			return nil, fmt.Errorf("%s opm: %w", label, err)
		}
		eps, err := CleanFloat(at(t.EPS, i))
		if err != nil {
			return nil, fmt.Errorf("%s eps: %w", label, err)
		}

		rows = append(rows, models.PeriodMetrics{
			Period: period,
			Metrics: models.Metrics{
				Sales:           CleanNumber(at(t.Sales, i)),
				OperatingProfit: CleanNumber(at(t.OperatingProfit, i)),
				NetProfit:       CleanNumber(at(t.NetProfit, i)),
				OPMPercent:      opm,
				EPS:             eps,
				SourceURL:       text(at(t.Sources, i)),
			},
		})
	}
	return rows, nil
}

// at returns s[i], or "" when i is out of range.
func at(s []string, i int) string {
	if i < 0 || i >= len(s) {
		return ""
	}
	return s[i]
}
