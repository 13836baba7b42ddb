package marketdata

import (
	"context"
	"strings"
	"time"

	"finsight/internal/adapters/config"
	"finsight/internal/domain/market_data"
	"finsight/internal/workers"
	"finsight/pkg/errors"
)

// KlineWriter stores candles
type KlineWriter interface {
	InsertKlines(ctx context.Context, candles []market_data.OHLCV) error
}

// KlineArchiver copies recent daily candles of the watchlist from a live provider
// into the kline store, which backs the stored-kline fallback provider
type KlineArchiver struct {
	*workers.Base
	source    market_data.Provider
	sink      KlineWriter
	snapshots config.SnapshotSource
	days      int
}

// NewKlineArchiver creates the archiver worker
func NewKlineArchiver(
	source market_data.Provider,
	sink KlineWriter,
	snapshots config.SnapshotSource,
	interval time.Duration,
	days int,
	enabled bool,
) *KlineArchiver {
	if days <= 0 {
		days = 60
	}
	return &KlineArchiver{
		Base:      workers.NewBase("kline_archiver", interval, enabled),
		source:    source,
		sink:      sink,
		snapshots: snapshots,
		days:      days,
	}
}

// Run archives one window per watchlist ticker. Failures of single tickers are
// logged and reported together.
func (a *KlineArchiver) Run(ctx context.Context) error {
	snap, err := a.snapshots.Snapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "read runtime snapshot")
	}

	tickers := make([]string, 0)
	for _, e := range snap.WatchlistEntries() {
		tickers = append(tickers, strings.ToUpper(e.Ticker))
	}
	tickers = append(tickers, snap.MarketOverviewSymbols...)

	var merr errors.MultiError
	total := 0
	for i, ticker := range tickers {
		select {
		case <-ctx.Done():
			a.Logger().Infow("Kline archiving interrupted by shutdown",
				"candles_archived", total,
				"symbols_processed", i,
				"symbols_remaining", len(tickers)-i,
			)
			return nil
		default:
		}

		n, err := a.archive(ctx, ticker)
		if err != nil {
			a.Logger().Warnw("Failed to archive klines", "symbol", ticker, "error", err)
			merr.Add(errors.Wrapf(err, "archive %s", ticker))
			continue
		}
		total += n
	}

	a.Logger().Infow("Kline archiving complete", "candles_archived", total, "symbols", len(tickers))
	return merr.ToError()
}

func (a *KlineArchiver) archive(ctx context.Context, ticker string) (int, error) {
	candles, err := a.source.GetKlines(ctx, market_data.KlineQuery{
		Symbol:   ticker,
		Interval: "1d",
		Limit:    a.days,
	})
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, nil
	}
	if err := a.sink.InsertKlines(ctx, candles); err != nil {
		return 0, err
	}
	return len(candles), nil
}
