package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"finsight/internal/adapters/config"
	"finsight/internal/domain/market_data"
	"finsight/pkg/errors"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) GetQuote(ctx context.Context, symbol string) (*market_data.Quote, error) {
	return nil, errors.ErrNotFound
}

func (m *mockSource) GetKlines(ctx context.Context, q market_data.KlineQuery) ([]market_data.OHLCV, error) {
	args := m.Called(q.Symbol)
	candles, _ := args.Get(0).([]market_data.OHLCV)
	return candles, args.Error(1)
}

func (m *mockSource) GetCurve(ctx context.Context, symbol string) ([]market_data.CurvePoint, error) {
	return nil, errors.ErrNotFound
}

type memorySink struct {
	stored []market_data.OHLCV
}

func (s *memorySink) InsertKlines(_ context.Context, candles []market_data.OHLCV) error {
	s.stored = append(s.stored, candles...)
	return nil
}

func TestKlineArchiver_Run(t *testing.T) {
	rt := config.DefaultRuntime()
	rt.Watchlist = []string{"aapl=Apple", "MSFT"}
	rt.MarketOverviewSymbols = []string{"^GSPC"}

	src := &mockSource{}
	src.On("GetKlines", "AAPL").Return([]market_data.OHLCV{{Symbol: "AAPL", Close: 1}, {Symbol: "AAPL", Close: 2}}, nil)
	src.On("GetKlines", "MSFT").Return(nil, errors.ErrUnavailable)
	src.On("GetKlines", "^GSPC").Return([]market_data.OHLCV{{Symbol: "^GSPC", Close: 5000}}, nil)

	sink := &memorySink{}
	w := NewKlineArchiver(src, sink, config.NewStaticSnapshotSource(rt), time.Hour, 30, true)

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnavailable)
	assert.Len(t, sink.stored, 3)
	src.AssertExpectations(t)
}

func TestKlineArchiver_StopsOnShutdown(t *testing.T) {
	rt := config.DefaultRuntime()
	rt.Watchlist = []string{"AAPL"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &mockSource{}
	w := NewKlineArchiver(src, &memorySink{}, config.NewStaticSnapshotSource(rt), time.Hour, 0, true)
	assert.NoError(t, w.Run(ctx))
	src.AssertNotCalled(t, "GetKlines", mock.Anything)
}
