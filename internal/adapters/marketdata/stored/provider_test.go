package stored

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"finsight/internal/domain/market_data"
	"finsight/pkg/errors"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetKlines(ctx context.Context, query market_data.KlineQuery) ([]market_data.OHLCV, error) {
	args := m.Called(ctx, query)
	candles, _ := args.Get(0).([]market_data.OHLCV)
	return candles, args.Error(1)
}

func (m *mockRepo) GetLatestKline(ctx context.Context, symbol, interval string) (*market_data.OHLCV, error) {
	args := m.Called(ctx, symbol, interval)
	k, _ := args.Get(0).(*market_data.OHLCV)
	return k, args.Error(1)
}

func TestGetQuote_FromDailyCandles(t *testing.T) {
	repo := &mockRepo{}
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	repo.On("GetKlines", mock.Anything, market_data.KlineQuery{Symbol: "AAPL", Interval: "1d", Limit: 2}).
		Return([]market_data.OHLCV{
			{Close: 100, OpenTime: day.AddDate(0, 0, -1)},
			{Open: 101, High: 104, Low: 100, Close: 102, Volume: 5000, OpenTime: day},
		}, nil)

	q, err := NewProvider(repo).GetQuote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, 102.0, q.Price)
	assert.Equal(t, 100.0, q.PreviousClose)
	assert.InDelta(t, 2.0, q.ChangePercent, 1e-9)
	assert.Equal(t, int64(5000), q.Volume)
	assert.Equal(t, day, q.Timestamp)
	repo.AssertExpectations(t)
}

func TestGetQuote_Empty(t *testing.T) {
	repo := &mockRepo{}
	repo.On("GetKlines", mock.Anything, mock.Anything).Return(nil, nil)

	_, err := NewProvider(repo).GetQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.ErrorIs(t, err, errors.ErrProviderExecution)
}

func TestGetKlines_DefaultsInterval(t *testing.T) {
	repo := &mockRepo{}
	repo.On("GetKlines", mock.Anything, market_data.KlineQuery{Symbol: "MSFT", Interval: "1d", Limit: 30}).
		Return([]market_data.OHLCV{{Close: 1}}, nil)

	candles, err := NewProvider(repo).GetKlines(context.Background(), market_data.KlineQuery{Symbol: "msft", Limit: 30})
	require.NoError(t, err)
	assert.Len(t, candles, 1)
}

func TestGetCurve(t *testing.T) {
	repo := &mockRepo{}
	repo.On("GetKlines", mock.Anything, mock.MatchedBy(func(q market_data.KlineQuery) bool {
		return q.Interval == "5m" && q.Symbol == "AAPL"
	})).Return([]market_data.OHLCV{
		{Close: 10, Volume: 100},
		{Close: 20, Volume: 300},
	}, nil)

	points, err := NewProvider(repo).GetCurve(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 17.5, points[1].AvgPrice)

	failing := &mockRepo{}
	failing.On("GetKlines", mock.Anything, mock.Anything).Return(nil, errors.ErrUnavailable)
	_, err = NewProvider(failing).GetCurve(context.Background(), "AAPL")
	assert.ErrorIs(t, err, errors.ErrUnavailable)
}
