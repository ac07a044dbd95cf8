package normalize

import (
	"fmt"
	"strings"
)

// quarterEnds maps the month token of a quarter label to its last day.
// Results are only published for these four months.
var quarterEnds = map[string]string{
	"Mar": "03-31",
	"Jun": "06-30",
	"Sep": "09-30",
	"Dec": "12-31",
}

// fiscalYearEnd is the month-day every annual period closes on.
const fiscalYearEnd = "03-31"

// QuarterEnd maps a quarter label such as "Dec 2025" to "2025-12-31".
func QuarterEnd(label string) (string, error) {
	month, year, err := splitLabel(label)
	if err != nil {
		return "", err
	}
	md, ok := quarterEnds[month]
	if !ok {
		return "", fmt.Errorf("%w: quarter label %q: unmapped month %q", ErrMalformed, label, month)
	}
	return year + "-" + md, nil
}

// YearEnd maps an annual label such as "Mar 2025" to its fiscal year end
// ("2025-03-31") and display label ("FY2025").
func YearEnd(label string) (periodEnd, display string, err error) {
	_, year, err := splitLabel(label)
	if err != nil {
		return "", "", err
	}
	return year + "-" + fiscalYearEnd, "FY" + year, nil
}

func splitLabel(label string) (month, year string, err error) {
	parts := strings.Fields(label)
	if len(parts) != 2 || !isYear(parts[1]) {
		return "", "", fmt.Errorf("%w: period label %q", ErrMalformed, label)
	}
	return parts[0], parts[1], nil
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CompanyID derives the stable company identifier from a display name:
// uppercase, with whitespace runs replaced by underscores.
func CompanyID(name string) string {
	return strings.Join(strings.Fields(strings.ToUpper(name)), "_")
}
