package normalize

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/firmlens/firmlens/pkg/models"
)

// eventRules is scanned in order; the first rule with a matching keyword
// decides the event type.
var eventRules = []struct {
	event    models.EventType
	keywords []string
}{
	{models.EventEarnings, []string{"profit", "pat", "earnings", "results", "margin"}},
	{models.EventRegulation, []string{"labour", "law", "regulation", "policy"}},
	{models.EventMarketOpinion, []string{"brokerage", "rating", "target", "buy", "sell"}},
	{models.EventBusinessUpdate, []string{"deal", "contract", "order", "partnership"}},
}

var timeContextRe = regexp.MustCompile(`(Q[1-4])\s*(FY)?\s*(\d{2,4})?`)

// NewsID returns the lower-hex MD5 digest of url.
func NewsID(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// ParseDate truncates an ISO-8601 timestamp to its date part.
func ParseDate(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, _, _ := strings.Cut(s, "T")
	return &d
}

// ClassifyEvent infers the event type from the title and summary.
func ClassifyEvent(title, summary string) models.EventType {
	body := strings.ToLower(title + " " + summary)
	for _, rule := range eventRules {
		for _, kw := range rule.keywords {
			if strings.Contains(body, kw) {
				return rule.event
			}
		}
	}
	return models.EventGeneral
}

// TimeContext returns the first quarter or fiscal-year mention in s,
// verbatim, or nil.
func TimeContext(s string) *string {
	m := timeContextRe.FindString(s)
	if m == "" {
		return nil
	}
	return &m
}

// NormalizeNews converts provider articles into news items. Articles
// without a URL have no identity and are dropped. Repeated URLs collapse
// into one item that keeps the position of the first occurrence and the
// fields of the last.
func NormalizeNews(raw []models.RawNews) []models.NewsItem {
	items := make([]models.NewsItem, 0, len(raw))
	index := make(map[string]int, len(raw))

	for _, r := range raw {
		url := strings.TrimSpace(r.URL)
		if url == "" {
			continue
		}
		title := text(r.Title)
		summary := text(r.Summary)

		var t, s string
		if title != nil {
			t = *title
		}
		if summary != nil {
			s = *summary
		}

		item := models.NewsItem{
			NewsID:      NewsID(url),
			Title:       title,
			Summary:     summary,
			Source:      text(r.Source),
			PublishedAt: ParseDate(r.PublishedAt),
			URL:         url,
			EventType:   ClassifyEvent(t, s),
			TimeContext: TimeContext(t + " " + s),
		}

		if i, ok := index[item.NewsID]; ok {
			items[i] = item
			continue
		}
		index[item.NewsID] = len(items)
		items = append(items, item)
	}
	return items
}
