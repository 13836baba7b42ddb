package market_data

import (
	"context"
	"time"
)

// Provider is a live market-data source
type Provider interface {
	Name() string
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetKlines(ctx context.Context, query KlineQuery) ([]OHLCV, error)
	GetCurve(ctx context.Context, symbol string) ([]CurvePoint, error)
}

// KlineRepository is stored kline access (ClickHouse)
type KlineRepository interface {
	GetKlines(ctx context.Context, query KlineQuery) ([]OHLCV, error)
	GetLatestKline(ctx context.Context, symbol, interval string) (*OHLCV, error)
}

// Cache keeps the last known good answer per symbol.
// Load returns errors.ErrNotFound on a miss.
type Cache interface {
	Load(ctx context.Context, kind, key string, dest interface{}) error
	Store(ctx context.Context, kind, key string, value interface{}, ttl time.Duration) error
}
