package news

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"finsight/internal/domain/news"
	"finsight/internal/providers"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

type MockNewsProvider struct {
	mock.Mock
}

func (m *MockNewsProvider) Name() string { return "mock" }

func (m *MockNewsProvider) Collect(ctx context.Context, symbol string, from, to time.Time) ([]news.Item, error) {
	args := m.Called(ctx, symbol, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]news.Item), args.Error(1)
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func corpus() []news.Item {
	return []news.Item{
		{ID: "1", Title: "Fed holds rates steady", Source: "Reuters", Category: "macro", PublishedAt: now.Add(-2 * time.Hour)},
		{ID: "2", Title: "Oil climbs on supply worries", Source: "Bloomberg", Category: "commodities", PublishedAt: now.Add(-1 * time.Hour)},
		{ID: "3", Title: "Chipmakers rally", Source: "CNBC", Category: "tech", PublishedAt: now.Add(-3 * time.Hour)},
		{ID: "4", Title: "Old story", Source: "Wire", PublishedAt: now.Add(-30 * 24 * time.Hour)},
	}
}

func newService(items []news.Item, err error) *Service {
	p := &MockNewsProvider{}
	p.On("Collect", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(items, err)

	reg := providers.NewRegistry()
	reg.Register(providers.KindNews, "mock", providers.Singleton(p))
	svc := NewService(reg, logger.NewNop())
	svc.now = func() time.Time { return now }
	return svc
}

func TestSearch_NoMatchFallsBackToRecentHeadlines(t *testing.T) {
	svc := newService(corpus(), nil)

	res, err := svc.Search(context.Background(), "mock", news.Query{Text: "AAPL", Ticker: "AAPL", Limit: 10}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.Items)
	assert.True(t, res.Fallback)
	assert.ElementsMatch(t, []string{news.WarnNoneMatched, news.WarnFallbackHeadline}, res.Warnings)

	assert.Equal(t, "2", res.Items[0].ID, "most recent first")
	for _, item := range res.Items {
		assert.NotEqual(t, "4", item.ID, "out-of-range items are excluded")
	}
}

func TestSearch_AliasMatchHasNoFallbackWarnings(t *testing.T) {
	items := append(corpus(), news.Item{
		ID: "5", Title: "Apple Inc unveils new chip", Source: "AP", PublishedAt: now.Add(-4 * time.Hour),
	})
	svc := newService(items, nil)

	res, err := svc.Search(context.Background(), "mock", news.Query{Text: "AAPL", Ticker: "AAPL"}, []string{"Apple Inc"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "5", res.Items[0].ID)
	assert.False(t, res.Fallback)
	assert.NotContains(t, res.Warnings, news.WarnNoneMatched)
	assert.NotContains(t, res.Warnings, news.WarnFallbackHeadline)
}

func TestSearch_LimitBoundsFallback(t *testing.T) {
	svc := newService(corpus(), nil)

	res, err := svc.Search(context.Background(), "mock", news.Query{Ticker: "TSLA", Limit: 2}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
}

func TestSearch_ProviderFailureDegrades(t *testing.T) {
	svc := newService(nil, errors.ErrTimeout)

	res, err := svc.Search(context.Background(), "mock", news.Query{Ticker: "AAPL"}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, "unavailable", res.Source)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "news_provider_failed")
}

func TestSearch_UnknownProviderDegrades(t *testing.T) {
	svc := newService(nil, nil)

	res, err := svc.Search(context.Background(), "nope", news.Query{Ticker: "AAPL"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "unavailable", res.Source)
}

func TestSearch_InvalidRange(t *testing.T) {
	svc := newService(nil, nil)

	_, err := svc.Search(context.Background(), "mock", news.Query{From: now, To: now.Add(-time.Hour)}, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestBuildTerms(t *testing.T) {
	terms := BuildTerms("600519", "600519.SH", []string{"Kweichow Moutai", "kweichow moutai"})
	assert.Equal(t, []string{"600519.SH", "600519"}, terms.Tickers)
	assert.Equal(t, []string{"Kweichow Moutai"}, terms.Names)

	terms = BuildTerms("iphone sales", "AAPL", nil)
	assert.Equal(t, []string{"AAPL"}, terms.Tickers)
	assert.Equal(t, []string{"iphone sales"}, terms.Names)
}

func TestStripSuffix(t *testing.T) {
	assert.Equal(t, "600519", StripSuffix("600519.SH"))
	assert.Equal(t, "0700", StripSuffix("0700.HK"))
	assert.Equal(t, "BRK.B", StripSuffix("BRK.B"))
	assert.Equal(t, "AAPL", StripSuffix("AAPL"))
	assert.Equal(t, "", StripSuffix(""))
}

func TestTickerMatchesWholeTokensOnly(t *testing.T) {
	terms := BuildTerms("", "AAPL", nil)

	assert.True(t, terms.Matches(news.Item{Title: "AAPL beats estimates"}))
	assert.True(t, terms.Matches(news.Item{Title: "Shares of (aapl) rose"}))
	assert.True(t, terms.Matches(news.Item{Category: "aapl"}))
	assert.False(t, terms.Matches(news.Item{Title: "AAPLX fund rebalances"}))
	assert.False(t, terms.Matches(news.Item{Title: "XAAPL index"}))
}

func TestNameMatchesSubstringAcrossFields(t *testing.T) {
	terms := BuildTerms("", "", []string{"Apple"})

	assert.True(t, terms.Matches(news.Item{Content: "Pineapple prices soar"}), "names are substring matches")
	assert.True(t, terms.Matches(news.Item{Source: "APPLE newsroom"}))
	assert.False(t, terms.Matches(news.Item{Title: "Microsoft earnings"}))
}
