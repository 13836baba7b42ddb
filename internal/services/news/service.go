package news

import (
	"context"
	"strings"
	"time"

	"finsight/internal/domain/news"
	"finsight/internal/providers"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

const (
	defaultLookback = 7 * 24 * time.Hour
	defaultLimit    = 20
)

// Service searches news for a ticker or company
type Service struct {
	registry *providers.Registry
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a news search service
func NewService(registry *providers.Registry, log *logger.Logger) *Service {
	return &Service{
		registry: registry,
		log:      log,
		now:      time.Now,
	}
}

// Search collects news from providerID and applies the match policy.
// Provider failures degrade to an empty result with a warning; only invalid queries return an error.
func (s *Service) Search(ctx context.Context, providerID string, q news.Query, aliases []string) (news.SearchResult, error) {
	if q.To.IsZero() {
		q.To = s.now()
	}
	if q.From.IsZero() {
		q.From = q.To.Add(-defaultLookback)
	}
	if q.From.After(q.To) {
		return news.SearchResult{}, errors.NewValidationError("from", "after to", q.From)
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}

	terms := BuildTerms(q.Text, q.Ticker, aliases)
	result := news.SearchResult{Terms: terms.All(), Source: providerID, Items: []news.Item{}}

	provider, err := s.registry.ResolveNews(providerID)
	if err != nil {
		s.log.Warnw("News provider not resolvable", "provider", providerID, "error", err)
		result.Source = "unavailable"
		result.Warnings = append(result.Warnings, "news_provider_unavailable: "+err.Error())
		return result, nil
	}

	items, err := provider.Collect(ctx, strings.TrimSpace(q.Ticker), q.From, q.To)
	if err != nil {
		s.log.Warnw("News collection failed", "provider", providerID, "ticker", q.Ticker, "error", err)
		result.Source = "unavailable"
		result.Warnings = append(result.Warnings, "news_provider_failed: "+err.Error())
		return result, nil
	}

	selected, fallback := Select(items, terms, q.From, q.To, q.Limit)
	result.Items = selected
	result.Fallback = fallback
	if fallback {
		result.Warnings = append(result.Warnings, news.WarnNoneMatched, news.WarnFallbackHeadline)
		s.log.Debugw("No strict news match, using recent headlines",
			"ticker", q.Ticker, "terms", result.Terms, "returned", len(selected))
	}
	return result, nil
}
