package market_data

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"finsight/internal/domain/market_data"
	"finsight/internal/providers"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

type MockProvider struct {
	mock.Mock
	name string
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) GetQuote(ctx context.Context, symbol string) (*market_data.Quote, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*market_data.Quote), args.Error(1)
}

func (m *MockProvider) GetKlines(ctx context.Context, q market_data.KlineQuery) ([]market_data.OHLCV, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]market_data.OHLCV), args.Error(1)
}

func (m *MockProvider) GetCurve(ctx context.Context, symbol string) ([]market_data.CurvePoint, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]market_data.CurvePoint), args.Error(1)
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCache() *memoryCache { return &memoryCache{items: map[string][]byte{}} }

func (c *memoryCache) Load(_ context.Context, kind, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[kind+":"+key]
	if !ok {
		return errors.ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Store(_ context.Context, kind, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[kind+":"+key] = raw
	return nil
}

func newService(cache market_data.Cache, ps ...*MockProvider) *Service {
	reg := providers.NewRegistry()
	for _, p := range ps {
		reg.Register(providers.KindMarketData, p.name, providers.Singleton(p))
	}
	return NewService(reg, cache, time.Hour, logger.NewNop())
}

func TestQuote_LiveProviderAnswersAndPopulatesCache(t *testing.T) {
	yahoo := &MockProvider{name: "yahoo"}
	yahoo.On("GetQuote", mock.Anything, "AAPL").Return(&market_data.Quote{Symbol: "AAPL", Price: 190.5}, nil)
	cache := newMemoryCache()
	svc := newService(cache, yahoo)

	res, err := svc.Quote(context.Background(), []string{"yahoo"}, " aapl ")
	require.NoError(t, err)
	assert.Equal(t, "yahoo", res.Source)
	assert.True(t, res.Available)
	assert.Equal(t, 190.5, res.Quote.Price)

	var cached market_data.Quote
	require.NoError(t, cache.Load(context.Background(), cacheKindQuote, "AAPL", &cached))
	assert.Equal(t, 190.5, cached.Price)
	yahoo.AssertExpectations(t)
}

func TestQuote_FallsBackToCache(t *testing.T) {
	cache := newMemoryCache()
	require.NoError(t, cache.Store(context.Background(), cacheKindQuote, "AAPL",
		market_data.Quote{Symbol: "AAPL", Price: 188}, time.Hour))

	yahoo := &MockProvider{name: "yahoo"}
	yahoo.On("GetQuote", mock.Anything, "AAPL").Return(nil, errors.ErrTimeout)
	svc := newService(cache, yahoo)

	res, err := svc.Quote(context.Background(), []string{"yahoo"}, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, market_data.SourceCache, res.Source)
	assert.True(t, res.Available)
	assert.Equal(t, 188.0, res.Quote.Price)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "yahoo failed")
}

func TestQuote_UnavailablePlaceholderNeverErrors(t *testing.T) {
	yahoo := &MockProvider{name: "yahoo"}
	yahoo.On("GetQuote", mock.Anything, "MSFT").Return(nil, errors.ErrUnavailable)
	svc := newService(newMemoryCache(), yahoo)

	res, err := svc.Quote(context.Background(), []string{"yahoo", "unknown"}, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, market_data.SourceUnavailable, res.Source)
	assert.False(t, res.Available)
	assert.Equal(t, "MSFT", res.Quote.Symbol)
	assert.Zero(t, res.Quote.Price)
	assert.Len(t, res.Warnings, 3, "yahoo, unknown and cache each add one warning")
}

func TestQuote_SecondProviderAnswers(t *testing.T) {
	yahoo := &MockProvider{name: "yahoo"}
	yahoo.On("GetQuote", mock.Anything, "AAPL").Return(&market_data.Quote{}, nil)
	stored := &MockProvider{name: "clickhouse"}
	stored.On("GetQuote", mock.Anything, "AAPL").Return(&market_data.Quote{Symbol: "AAPL", Price: 1}, nil)
	svc := newService(nil, yahoo, stored)

	res, err := svc.Quote(context.Background(), []string{"yahoo", "clickhouse"}, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", res.Source)
	assert.Len(t, res.Warnings, 1)
}

func TestQuote_EmptySymbolIsValidation(t *testing.T) {
	svc := newService(nil)
	_, err := svc.Quote(context.Background(), nil, "  ")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestKlines_TrimsToLimit(t *testing.T) {
	candles := make([]market_data.OHLCV, 10)
	for i := range candles {
		candles[i] = market_data.OHLCV{Symbol: "AAPL", Close: float64(i)}
	}
	yahoo := &MockProvider{name: "yahoo"}
	yahoo.On("GetKlines", mock.Anything, mock.Anything).Return(candles, nil)
	svc := newService(nil, yahoo)

	res, err := svc.Klines(context.Background(), []string{"yahoo"}, market_data.KlineQuery{Symbol: "AAPL", Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, "1d", res.Interval)
	require.Len(t, res.Candles, 3)
	assert.Equal(t, 9.0, res.Candles[2].Close)
}

func TestKlines_EmptySeriesDegrades(t *testing.T) {
	yahoo := &MockProvider{name: "yahoo"}
	yahoo.On("GetKlines", mock.Anything, mock.Anything).Return([]market_data.OHLCV{}, nil)
	svc := newService(nil, yahoo)

	res, err := svc.Klines(context.Background(), []string{"yahoo"}, market_data.KlineQuery{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, market_data.SourceUnavailable, res.Source)
	assert.NotNil(t, res.Candles)
	assert.Empty(t, res.Candles)
}

func TestCurve_LiveThenCache(t *testing.T) {
	cache := newMemoryCache()
	yahoo := &MockProvider{name: "yahoo"}
	yahoo.On("GetCurve", mock.Anything, "AAPL").Return([]market_data.CurvePoint{{Price: 1}}, nil).Once()
	yahoo.On("GetCurve", mock.Anything, "AAPL").Return(nil, errors.ErrTimeout)
	svc := newService(cache, yahoo)

	first, err := svc.Curve(context.Background(), []string{"yahoo"}, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "yahoo", first.Source)

	second, err := svc.Curve(context.Background(), []string{"yahoo"}, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, market_data.SourceCache, second.Source)
	assert.Len(t, second.Points, 1)
}

func TestKlines_CacheIsScopedToTheWindow(t *testing.T) {
	short := make([]market_data.OHLCV, 60)
	for i := range short {
		short[i] = market_data.OHLCV{Symbol: "AAPL", Close: float64(i)}
	}
	end := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	shortQuery := market_data.KlineQuery{Symbol: "AAPL", Start: end.AddDate(0, 0, -60), End: end, Limit: 60}
	longQuery := market_data.KlineQuery{Symbol: "AAPL", Start: end.AddDate(0, 0, -180), End: end, Limit: 180}

	cache := newMemoryCache()
	yahoo := &MockProvider{name: "yahoo"}
	yahoo.On("GetKlines", mock.Anything, mock.Anything).Return(short, nil).Once()
	yahoo.On("GetKlines", mock.Anything, mock.Anything).Return(nil, errors.ErrTimeout)
	svc := newService(cache, yahoo)

	first, err := svc.Klines(context.Background(), []string{"yahoo"}, shortQuery)
	require.NoError(t, err)
	assert.Equal(t, "yahoo", first.Source)

	long, err := svc.Klines(context.Background(), []string{"yahoo"}, longQuery)
	require.NoError(t, err)
	assert.Equal(t, market_data.SourceUnavailable, long.Source, "a shorter cached window is not served")
	assert.Empty(t, long.Candles)

	again, err := svc.Klines(context.Background(), []string{"yahoo"}, shortQuery)
	require.NoError(t, err)
	assert.Equal(t, market_data.SourceCache, again.Source)
	assert.Len(t, again.Candles, 60)
}
