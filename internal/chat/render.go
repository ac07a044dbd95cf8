package chat

import (
	"strconv"
	"strings"

	"github.com/firmlens/firmlens/pkg/models"
)

// missing stands in for absent values so the model never sees "null".
const missing = "—"

// Render flattens a bundle into the fixed-section text context. The output
// depends only on the bundle.
func Render(b *Bundle) string {
	var sb strings.Builder
	c := b.Company

	sb.WriteString("== Company ==\n")
	line(&sb, "company_id: ", orMissing(c.CompanyID))
	line(&sb, "name: ", orMissing(c.Name))
	line(&sb, "sector: ", str(c.Sector))
	line(&sb, "industry: ", str(c.Industry))
	line(&sb, "market_cap_cr: ", integer(c.MarketCapCr))
	line(&sb, "current_price: ", integer(c.CurrentPrice))
	line(&sb, "description: ", str(c.Description))
	sb.WriteString("\n")

	sb.WriteString("== Quarterly financials (oldest → latest) ==\n")
	for _, pm := range b.Quarterly {
		line(&sb, periodLine(pm), " | source_url=", str(pm.SourceURL))
	}
	if len(b.Quarterly) == 0 {
		sb.WriteString("- (no quarterly data)\n")
	}
	sb.WriteString("\n")

	sb.WriteString("== Annual financials ==\n")
	for _, pm := range b.Annual {
		line(&sb, periodLine(pm))
	}
	if len(b.Annual) == 0 {
		sb.WriteString("- (no annual data)\n")
	}
	sb.WriteString("\n")

	sb.WriteString("== News (latest first) ==\n")
	for _, n := range b.News {
		line(&sb, "- ", str(n.PublishedAt), " | ", orMissing(string(n.EventType)), " | ", str(n.Title),
			" (source=", str(n.Source), ") url=", orMissing(n.URL))
		if n.Summary != nil && *n.Summary != "" {
			line(&sb, "  summary: ", *n.Summary)
		}
	}
	if len(b.News) == 0 {
		sb.WriteString("- (no news)\n")
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

func periodLine(pm models.PeriodMetrics) string {
	return "- " + orMissing(pm.Label) +
		" | period_end=" + orMissing(pm.PeriodEnd) +
		" | sales=" + integer(pm.Sales) +
		" | op_profit=" + integer(pm.OperatingProfit) +
		" | opm%=" + integer(pm.OPMPercent) +
		" | net_profit=" + integer(pm.NetProfit) +
		" | eps=" + float(pm.EPS)
}

func line(sb *strings.Builder, parts ...string) {
	for _, p := range parts {
		sb.WriteString(p)
	}
	sb.WriteByte('\n')
}

func orMissing(s string) string {
	if s == "" {
		return missing
	}
	return s
}

func str(p *string) string {
	if p == nil {
		return missing
	}
	return orMissing(*p)
}

func integer(p *int64) string {
	if p == nil {
		return missing
	}
	return strconv.FormatInt(*p, 10)
}

func float(p *float64) string {
	if p == nil {
		return missing
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}
