package models

// EventType is the inferred classification of a news item.
type EventType string

const (
	EventEarnings       EventType = "earnings"
	EventRegulation     EventType = "regulation"
	EventMarketOpinion  EventType = "market_opinion"
	EventBusinessUpdate EventType = "business_update"
	EventGeneral        EventType = "general"
)

// NewsItem is a news article mentioning a company. NewsID is the MD5 hex
// digest of URL, so re-fetching an article never duplicates it.
type NewsItem struct {
	NewsID      string    `json:"news_id"`
	Title       *string   `json:"title"`
	Summary     *string   `json:"summary"`
	Source      *string   `json:"source"`
	PublishedAt *string   `json:"published_at"` // YYYY-MM-DD
	URL         string    `json:"url"`
	EventType   EventType `json:"event_type"`
	TimeContext *string   `json:"time_context"` // e.g., "Q3 FY26"
}
