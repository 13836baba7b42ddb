package news

import (
	"context"
	"time"
)

// Item is one news article
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	Content     string    `json:"content"`
	URL         string    `json:"url,omitempty"`
	Related     string    `json:"related,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Haystack is the text name terms are matched against
func (i Item) Haystack() string {
	return i.Title + " " + i.Source + " " + i.Category + " " + i.Content
}

// Query describes a news search
type Query struct {
	Text   string
	Ticker string
	From   time.Time
	To     time.Time
	Limit  int
}

// Warning codes attached when strict matching finds nothing
const (
	WarnNoneMatched      = "no_news_matched"
	WarnFallbackHeadline = "news_fallback_recent_headlines"
)

// SearchResult is the outcome of a news search
type SearchResult struct {
	Items    []Item   `json:"items"`
	Terms    []string `json:"terms"`
	Fallback bool     `json:"fallback"`
	Source   string   `json:"source"`
	Warnings []string `json:"warnings,omitempty"`
}

// Provider collects raw news within a window. Symbol may be empty for general market news.
type Provider interface {
	Name() string
	Collect(ctx context.Context, symbol string, from, to time.Time) ([]Item, error)
}
