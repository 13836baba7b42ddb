package shared

import (
	"context"

	"finsight/internal/domain/indicator"
	"finsight/internal/domain/market_data"
	"finsight/internal/domain/news"
	"finsight/internal/providers"
	"finsight/pkg/logger"
)

// MarketData is the market-data chain used by tools
type MarketData interface {
	Quote(ctx context.Context, providerIDs []string, symbol string) (market_data.QuoteResult, error)
	Klines(ctx context.Context, providerIDs []string, query market_data.KlineQuery) (market_data.KlineResult, error)
	Curve(ctx context.Context, providerIDs []string, symbol string) (market_data.CurveResult, error)
}

// IndicatorEngine computes indicators through the backend tiers
type IndicatorEngine interface {
	Compute(ctx context.Context, candles []market_data.OHLCV) (indicator.Result, error)
}

// NewsSearch finds news for a ticker or company
type NewsSearch interface {
	Search(ctx context.Context, providerID string, q news.Query, aliases []string) (news.SearchResult, error)
}

// Deps bundles dependencies required by concrete tool implementations
type Deps struct {
	MarketData MarketData
	Indicators IndicatorEngine
	News       NewsSearch
	Providers  *providers.Registry
	Log        *logger.Logger
}
