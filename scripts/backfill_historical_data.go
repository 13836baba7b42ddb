package main

// Backfills daily or intraday candles from Yahoo Finance into ClickHouse so the
// stored-kline provider has history before the archiver has accumulated any.
//
// Usage:
//   go run scripts/backfill_historical_data.go --symbols AAPL,MSFT --interval 1d --limit 500

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	chclient "finsight/internal/adapters/clickhouse"
	"finsight/internal/adapters/config"
	"finsight/internal/adapters/marketdata/yahoo"
	"finsight/internal/domain/market_data"
	chrepo "finsight/internal/repository/clickhouse"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

func main() {
	symbols := flag.String("symbols", "", "Comma separated tickers to backfill")
	interval := flag.String("interval", "1d", "Candle interval (5m, 15m, 1h, 1d)")
	limit := flag.Int("limit", 500, "Candles per symbol")
	batchSize := flag.Int("batch", 1000, "Candles per ClickHouse insert")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get().With("component", "backfill")

	tickers := splitSymbols(*symbols)
	if len(tickers) == 0 {
		log.Fatalf("--symbols is required")
	}
	if !cfg.ClickHouse.Enabled() {
		log.Fatalf("CLICKHOUSE_HOST is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ch, err := chclient.NewClient(ctx, cfg.ClickHouse)
	if err != nil {
		log.Fatalf("failed to connect clickhouse: %v", err)
	}
	defer ch.Close()

	repo := chrepo.NewKlineRepository(ch.Conn())
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to prepare kline schema: %v", err)
	}

	source := yahoo.NewProvider(cfg.MarketData.Timeout)
	var merr errors.MultiError
	total := 0
	start := time.Now()

	for _, ticker := range tickers {
		if ctx.Err() != nil {
			log.Warnw("Backfill interrupted", "candles", total)
			break
		}
		candles, err := source.GetKlines(ctx, market_data.KlineQuery{
			Symbol:   ticker,
			Interval: *interval,
			Limit:    *limit,
		})
		if err != nil {
			log.Warnw("Failed to fetch klines", "symbol", ticker, "error", err)
			merr.Add(errors.Wrapf(err, "fetch %s", ticker))
			continue
		}
		if err := insertBatches(ctx, repo, candles, *batchSize); err != nil {
			log.Warnw("Failed to store klines", "symbol", ticker, "error", err)
			merr.Add(errors.Wrapf(err, "store %s", ticker))
			continue
		}
		total += len(candles)
		log.Infow("Symbol backfilled", "symbol", ticker, "candles", len(candles))
	}

	log.Infow("Backfill complete", "symbols", len(tickers), "candles", total, "took", time.Since(start))
	if err := merr.ToError(); err != nil {
		log.Errorw("Backfill finished with failures", "error", err)
		os.Exit(1)
	}
}

func splitSymbols(raw string) []string {
	out := make([]string, 0)
	for _, s := range strings.Split(raw, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func insertBatches(ctx context.Context, repo *chrepo.KlineRepository, candles []market_data.OHLCV, size int) error {
	if size <= 0 {
		size = len(candles)
	}
	for i := 0; i < len(candles); i += size {
		end := i + size
		if end > len(candles) {
			end = len(candles)
		}
		if err := repo.InsertKlines(ctx, candles[i:end]); err != nil {
			return err
		}
	}
	return nil
}
