package market_data

import (
	"context"
	"strconv"
	"strings"
	"time"

	"finsight/internal/domain/market_data"
	"finsight/internal/fallback"
	"finsight/internal/providers"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

const (
	cacheKindQuote = "quote"
	cacheKindKline = "kline"
	cacheKindCurve = "curve"
)

// Service answers quote, kline and curve requests through the chain
// live provider(s) -> last known good cache -> unavailable placeholder
type Service struct {
	registry *providers.Registry
	cache    market_data.Cache
	cacheTTL time.Duration
	log      *logger.Logger
}

// NewService creates a new market data service. cache may be nil.
func NewService(registry *providers.Registry, cache market_data.Cache, cacheTTL time.Duration, log *logger.Logger) *Service {
	return &Service{
		registry: registry,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// Quote returns the latest quote. It fails only on invalid input.
func (s *Service) Quote(ctx context.Context, providerIDs []string, symbol string) (market_data.QuoteResult, error) {
	symbol = normalize(symbol)
	if symbol == "" {
		return market_data.QuoteResult{}, errors.NewValidationError("symbol", "required", symbol)
	}

	value, source, warnings, err := resolve(ctx, s, cacheKindQuote, symbol, providerIDs,
		func(ctx context.Context, p market_data.Provider) (market_data.Quote, error) {
			q, err := p.GetQuote(ctx, symbol)
			if err != nil {
				return market_data.Quote{}, err
			}
			if q == nil || q.Price <= 0 {
				return market_data.Quote{}, errors.Wrap(errors.ErrInsufficientData, "empty quote")
			}
			return *q, nil
		},
		func() market_data.Quote { return market_data.Quote{Symbol: symbol} },
	)
	if err != nil {
		return market_data.QuoteResult{}, err
	}

	return market_data.QuoteResult{
		Quote:     value,
		Source:    source,
		Available: source != market_data.SourceUnavailable,
		Warnings:  warnings,
	}, nil
}

// Klines returns candles oldest first. It fails only on invalid input.
func (s *Service) Klines(ctx context.Context, providerIDs []string, query market_data.KlineQuery) (market_data.KlineResult, error) {
	query.Symbol = normalize(query.Symbol)
	if query.Symbol == "" {
		return market_data.KlineResult{}, errors.NewValidationError("symbol", "required", query.Symbol)
	}
	if query.Interval == "" {
		query.Interval = "1d"
	}
	if !query.Start.IsZero() && !query.End.IsZero() && query.End.Before(query.Start) {
		return market_data.KlineResult{}, errors.NewValidationError("end", "before start", query.End)
	}

	value, source, warnings, err := resolve(ctx, s, cacheKindKline, klineCacheKey(query), providerIDs,
		func(ctx context.Context, p market_data.Provider) ([]market_data.OHLCV, error) {
			candles, err := p.GetKlines(ctx, query)
			if err != nil {
				return nil, err
			}
			if len(candles) == 0 {
				return nil, errors.Wrap(errors.ErrInsufficientData, "empty kline series")
			}
			return trim(candles, query.Limit), nil
		},
		func() []market_data.OHLCV { return []market_data.OHLCV{} },
	)
	if err != nil {
		return market_data.KlineResult{}, err
	}

	return market_data.KlineResult{
		Symbol:    query.Symbol,
		Interval:  query.Interval,
		Candles:   value,
		Source:    source,
		Available: source != market_data.SourceUnavailable,
		Warnings:  warnings,
	}, nil
}

// Curve returns the intraday curve. It fails only on invalid input.
func (s *Service) Curve(ctx context.Context, providerIDs []string, symbol string) (market_data.CurveResult, error) {
	symbol = normalize(symbol)
	if symbol == "" {
		return market_data.CurveResult{}, errors.NewValidationError("symbol", "required", symbol)
	}

	value, source, warnings, err := resolve(ctx, s, cacheKindCurve, symbol, providerIDs,
		func(ctx context.Context, p market_data.Provider) ([]market_data.CurvePoint, error) {
			points, err := p.GetCurve(ctx, symbol)
			if err != nil {
				return nil, err
			}
			if len(points) == 0 {
				return nil, errors.Wrap(errors.ErrInsufficientData, "empty curve")
			}
			return points, nil
		},
		func() []market_data.CurvePoint { return []market_data.CurvePoint{} },
	)
	if err != nil {
		return market_data.CurveResult{}, err
	}

	return market_data.CurveResult{
		Symbol:    symbol,
		Points:    value,
		Source:    source,
		Available: source != market_data.SourceUnavailable,
		Warnings:  warnings,
	}, nil
}

func resolve[T any](
	ctx context.Context,
	s *Service,
	kind, key string,
	providerIDs []string,
	fetch func(ctx context.Context, p market_data.Provider) (T, error),
	placeholder func() T,
) (T, string, []string, error) {
	cands := make([]fallback.Candidate[T], 0, len(providerIDs)+1)
	for _, raw := range providerIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		cands = append(cands, fallback.Candidate[T]{
			ID: id,
			Run: func(ctx context.Context) (T, error) {
				var zero T
				p, err := s.registry.ResolveMarketData(id)
				if err != nil {
					s.log.Warnw("Market data provider not resolvable", "provider", id, "error", err)
					return zero, err
				}
				value, err := fetch(ctx, p)
				if err != nil {
					return zero, errors.NewProviderError(id, kind, err)
				}
				s.remember(ctx, kind, key, value)
				return value, nil
			},
		})
	}

	if s.cache != nil {
		cands = append(cands, fallback.Candidate[T]{
			ID: market_data.SourceCache,
			Run: func(ctx context.Context) (T, error) {
				var value T
				if err := s.cache.Load(ctx, kind, key, &value); err != nil {
					return value, err
				}
				return value, nil
			},
		})
	}

	chain := fallback.New("market_data."+kind, fallback.Terminal[T]{
		ID:  market_data.SourceUnavailable,
		Run: func(context.Context) T { return placeholder() },
	}, cands...)

	res, err := chain.Resolve(ctx)
	if err != nil {
		var zero T
		return zero, "", nil, err
	}
	return res.Value, res.Source, res.Warnings, nil
}

func (s *Service) remember(ctx context.Context, kind, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Store(ctx, kind, key, value, s.cacheTTL); err != nil {
		s.log.Warnw("Failed to store last known good value", "kind", kind, "key", key, "error", err)
	}
}

// klineCacheKey identifies a candle window, so a cached series is only
// served for the same interval, day range and limit it was fetched with
func klineCacheKey(q market_data.KlineQuery) string {
	day := func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("20060102")
	}
	return strings.Join([]string{q.Symbol, q.Interval, day(q.Start), day(q.End), strconv.Itoa(q.Limit)}, ":")
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func trim(candles []market_data.OHLCV, limit int) []market_data.OHLCV {
	if limit <= 0 || len(candles) <= limit {
		return candles
	}
	return candles[len(candles)-limit:]
}
