package stored

import (
	"context"
	"strings"
	"time"

	"finsight/internal/domain/market_data"
	"finsight/pkg/errors"
)

// ProviderID is the registry id of the stored-kline provider
const ProviderID = "clickhouse"

const (
	quoteInterval = "1d"
	curveInterval = "5m"
)

// Provider answers market-data calls from archived klines.
// It trails the live providers and sits behind them in the fallback order.
type Provider struct {
	repo market_data.KlineRepository
	now  func() time.Time
}

// NewProvider creates a provider over a kline repository
func NewProvider(repo market_data.KlineRepository) *Provider {
	return &Provider{repo: repo, now: time.Now}
}

func (p *Provider) Name() string { return ProviderID }

// GetQuote derives a quote from the two most recent daily candles
func (p *Provider) GetQuote(ctx context.Context, symbol string) (*market_data.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.NewValidationError("symbol", "required", symbol)
	}

	candles, err := p.repo.GetKlines(ctx, market_data.KlineQuery{Symbol: symbol, Interval: quoteInterval, Limit: 2})
	if err != nil {
		return nil, errors.NewProviderError(ProviderID, "quote", err)
	}
	if len(candles) == 0 {
		return nil, errors.NewProviderError(ProviderID, "quote", errors.NotFound("stored kline", symbol))
	}

	last := candles[len(candles)-1]
	q := &market_data.Quote{
		Symbol:    symbol,
		Price:     last.Close,
		Open:      last.Open,
		High:      last.High,
		Low:       last.Low,
		Volume:    int64(last.Volume),
		Timestamp: last.OpenTime,
	}
	if len(candles) > 1 {
		prev := candles[len(candles)-2].Close
		q.PreviousClose = prev
		q.Change = last.Close - prev
		if prev != 0 {
			q.ChangePercent = q.Change / prev * 100
		}
	}
	return q, nil
}

// GetKlines reads stored candles, oldest first
func (p *Provider) GetKlines(ctx context.Context, query market_data.KlineQuery) ([]market_data.OHLCV, error) {
	query.Symbol = strings.ToUpper(strings.TrimSpace(query.Symbol))
	if query.Interval == "" {
		query.Interval = quoteInterval
	}
	candles, err := p.repo.GetKlines(ctx, query)
	if err != nil {
		return nil, errors.NewProviderError(ProviderID, "klines", err)
	}
	if len(candles) == 0 {
		return nil, errors.NewProviderError(ProviderID, "klines", errors.NotFound("stored kline", query.Symbol))
	}
	return candles, nil
}

// GetCurve rebuilds an intraday curve from stored five-minute candles of the last day
func (p *Provider) GetCurve(ctx context.Context, symbol string) ([]market_data.CurvePoint, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	end := p.now()
	candles, err := p.repo.GetKlines(ctx, market_data.KlineQuery{
		Symbol:   symbol,
		Interval: curveInterval,
		Start:    end.Add(-24 * time.Hour),
		End:      end,
	})
	if err != nil {
		return nil, errors.NewProviderError(ProviderID, "curve", err)
	}
	if len(candles) == 0 {
		return nil, errors.NewProviderError(ProviderID, "curve", errors.NotFound("stored curve", symbol))
	}

	points := make([]market_data.CurvePoint, 0, len(candles))
	var turnover, volume float64
	for _, c := range candles {
		turnover += c.Close * c.Volume
		volume += c.Volume
		avg := c.Close
		if volume > 0 {
			avg = turnover / volume
		}
		points = append(points, market_data.CurvePoint{
			Time:     c.OpenTime,
			Price:    c.Close,
			Volume:   c.Volume,
			AvgPrice: avg,
		})
	}
	return points, nil
}
