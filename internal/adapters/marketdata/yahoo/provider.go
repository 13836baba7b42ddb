package yahoo

import (
	"context"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"finsight/internal/domain/market_data"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

// ProviderID is the registry id of the Yahoo Finance provider
const ProviderID = "yahoo"

const (
	defaultInterval   = "1d"
	defaultKlineLimit = 120
	curveInterval     = datetime.FiveMins
)

// Fetcher is the part of the Yahoo Finance client the provider uses
type Fetcher interface {
	Quote(symbol string) (*finance.Quote, error)
	Bars(params *chart.Params) ([]finance.ChartBar, error)
}

type libraryFetcher struct{}

func (libraryFetcher) Quote(symbol string) (*finance.Quote, error) {
	return quote.Get(symbol)
}

func (libraryFetcher) Bars(params *chart.Params) ([]finance.ChartBar, error) {
	iter := chart.Get(params)
	var bars []finance.ChartBar
	for iter.Next() {
		if bar := iter.Bar(); bar != nil {
			bars = append(bars, *bar)
		}
	}
	return bars, iter.Err()
}

// Provider is a live market-data provider backed by Yahoo Finance
type Provider struct {
	fetcher Fetcher
	timeout time.Duration
	now     func() time.Time
	log     *logger.Logger
}

// NewProvider creates a provider that talks to Yahoo Finance
func NewProvider(timeout time.Duration) *Provider {
	return NewProviderWithFetcher(libraryFetcher{}, timeout)
}

// NewProviderWithFetcher creates a provider over a custom fetcher
func NewProviderWithFetcher(fetcher Fetcher, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Provider{
		fetcher: fetcher,
		timeout: timeout,
		now:     time.Now,
		log:     logger.Get().With("component", "yahoo_market_data"),
	}
}

func (p *Provider) Name() string { return ProviderID }

// GetQuote returns the regular-market quote for a symbol
func (p *Provider) GetQuote(ctx context.Context, symbol string) (*market_data.Quote, error) {
	symbol = normalize(symbol)
	if symbol == "" {
		return nil, errors.NewValidationError("symbol", "required", symbol)
	}

	q, err := call(ctx, p.timeout, func() (*finance.Quote, error) {
		return p.fetcher.Quote(symbol)
	})
	if err != nil {
		return nil, p.wrap("quote", symbol, err)
	}
	if q == nil || q.RegularMarketPrice == 0 {
		return nil, errors.NewProviderError(ProviderID, "quote", errors.NotFound("quote", symbol))
	}

	ts := p.now()
	if q.RegularMarketTime > 0 {
		ts = time.Unix(int64(q.RegularMarketTime), 0).UTC()
	}
	return &market_data.Quote{
		Symbol:        symbol,
		Name:          q.ShortName,
		Price:         q.RegularMarketPrice,
		Change:        q.RegularMarketChange,
		ChangePercent: q.RegularMarketChangePercent,
		PreviousClose: q.RegularMarketPreviousClose,
		Open:          q.RegularMarketOpen,
		High:          q.RegularMarketDayHigh,
		Low:           q.RegularMarketDayLow,
		Volume:        int64(q.RegularMarketVolume),
		Currency:      q.CurrencyID,
		Timestamp:     ts,
	}, nil
}

// GetKlines returns candles oldest first, trimmed to the query limit
func (p *Provider) GetKlines(ctx context.Context, query market_data.KlineQuery) ([]market_data.OHLCV, error) {
	symbol := normalize(query.Symbol)
	if symbol == "" {
		return nil, errors.NewValidationError("symbol", "required", query.Symbol)
	}
	interval := query.Interval
	if interval == "" {
		interval = defaultInterval
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultKlineLimit
	}
	end := query.End
	if end.IsZero() {
		end = p.now()
	}
	start := query.Start
	if start.IsZero() {
		start = end.Add(-lookback(interval, limit))
	}

	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.Interval(interval),
	}
	bars, err := call(ctx, p.timeout, func() ([]finance.ChartBar, error) {
		return p.fetcher.Bars(params)
	})
	if err != nil {
		return nil, p.wrap("klines", symbol, err)
	}

	candles := make([]market_data.OHLCV, 0, len(bars))
	for _, bar := range bars {
		if bar.Close.IsZero() {
			continue
		}
		candles = append(candles, market_data.OHLCV{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: time.Unix(int64(bar.Timestamp), 0).UTC(),
			Open:     bar.Open.InexactFloat64(),
			High:     bar.High.InexactFloat64(),
			Low:      bar.Low.InexactFloat64(),
			Close:    bar.Close.InexactFloat64(),
			Volume:   float64(bar.Volume),
		})
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// GetCurve returns today's five-minute curve with a running volume-weighted average price
func (p *Provider) GetCurve(ctx context.Context, symbol string) ([]market_data.CurvePoint, error) {
	symbol = normalize(symbol)
	if symbol == "" {
		return nil, errors.NewValidationError("symbol", "required", symbol)
	}

	end := p.now()
	start := end.Add(-24 * time.Hour)
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: curveInterval,
	}
	bars, err := call(ctx, p.timeout, func() ([]finance.ChartBar, error) {
		return p.fetcher.Bars(params)
	})
	if err != nil {
		return nil, p.wrap("curve", symbol, err)
	}

	points := make([]market_data.CurvePoint, 0, len(bars))
	turnover := decimal.Zero
	volume := decimal.Zero
	for _, bar := range bars {
		if bar.Close.IsZero() {
			continue
		}
		v := decimal.NewFromInt(int64(bar.Volume))
		turnover = turnover.Add(bar.Close.Mul(v))
		volume = volume.Add(v)

		avg := bar.Close
		if volume.IsPositive() {
			avg = turnover.Div(volume)
		}
		points = append(points, market_data.CurvePoint{
			Time:     time.Unix(int64(bar.Timestamp), 0).UTC(),
			Price:    bar.Close.InexactFloat64(),
			Volume:   float64(bar.Volume),
			AvgPrice: avg.Round(4).InexactFloat64(),
		})
	}
	return points, nil
}

func (p *Provider) wrap(op, symbol string, err error) error {
	p.log.Debugw("Yahoo request failed", "op", op, "symbol", symbol, "error", err)
	if errors.Is(err, errors.ErrTimeout) || errors.Is(err, errors.ErrCancelled) {
		return errors.NewProviderError(ProviderID, op, err)
	}
	return errors.NewProviderError(ProviderID, op, errors.Wrap(errors.ErrUnavailable, err.Error()))
}

// call runs a blocking library call and gives up when ctx or the timeout ends first.
// The library has no context support, so an abandoned call finishes in the background.
func call[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		if ctx.Err() == context.DeadlineExceeded {
			return zero, errors.Wrap(errors.ErrTimeout, "yahoo request")
		}
		return zero, errors.Wrap(errors.ErrCancelled, "yahoo request")
	}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// lookback sizes the request window so that limit candles fit, allowing for closed sessions
func lookback(interval string, limit int) time.Duration {
	var step time.Duration
	switch interval {
	case "1m":
		step = time.Minute
	case "5m":
		step = 5 * time.Minute
	case "15m":
		step = 15 * time.Minute
	case "30m":
		step = 30 * time.Minute
	case "1h", "60m":
		step = time.Hour
	case "1wk":
		step = 7 * 24 * time.Hour
	default:
		step = 24 * time.Hour
	}
	window := time.Duration(float64(step) * float64(limit) * 1.6)
	if step < 24*time.Hour && window < 4*24*time.Hour {
		window = 4 * 24 * time.Hour
	}
	return window
}
