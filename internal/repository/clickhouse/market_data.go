package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"finsight/internal/domain/market_data"
	"finsight/internal/metrics"
	"finsight/pkg/errors"
)

func observe(op string, start time.Time, err *error) {
	metrics.RecordDBQuery("clickhouse", op, time.Since(start), *err)
}

// Compile-time check
var _ market_data.KlineRepository = (*KlineRepository)(nil)

// Schema creates the kline table when it does not exist
const Schema = `
	CREATE TABLE IF NOT EXISTS klines (
		symbol    LowCardinality(String),
		interval  LowCardinality(String),
		open_time DateTime64(3, 'UTC'),
		open      Float64,
		high      Float64,
		low       Float64,
		close     Float64,
		volume    Float64
	) ENGINE = ReplacingMergeTree()
	ORDER BY (symbol, interval, open_time)`

// KlineRepository implements market_data.KlineRepository using ClickHouse
type KlineRepository struct {
	conn  driver.Conn
	table string
}

// NewKlineRepository creates a new kline repository over the klines table
func NewKlineRepository(conn driver.Conn) *KlineRepository {
	return &KlineRepository{conn: conn, table: "klines"}
}

// WithTable returns a copy reading and writing another table
func (r *KlineRepository) WithTable(table string) *KlineRepository {
	return &KlineRepository{conn: r.conn, table: table}
}

// EnsureSchema creates the kline table
func (r *KlineRepository) EnsureSchema(ctx context.Context) error {
	ddl := strings.Replace(Schema, "klines", r.table, 1)
	if err := r.conn.Exec(ctx, ddl); err != nil {
		return errors.Wrapf(err, "failed to create %s", r.table)
	}
	return nil
}

// InsertKlines inserts candles in batch. Re-inserted candles replace older rows on merge.
func (r *KlineRepository) InsertKlines(ctx context.Context, candles []market_data.OHLCV) (err error) {
	if len(candles) == 0 {
		return nil
	}
	defer observe("insert_klines", time.Now(), &err)

	batch, err := r.conn.PrepareBatch(ctx, fmt.Sprintf(`
		INSERT INTO %s (symbol, interval, open_time, open, high, low, close, volume)
	`, r.table))
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}

	for _, c := range candles {
		if err := batch.Append(
			strings.ToUpper(c.Symbol), c.Interval, c.OpenTime.UTC(),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		); err != nil {
			return errors.Wrap(err, "failed to append candle")
		}
	}

	return batch.Send()
}

// GetKlines returns candles oldest first. With a limit the most recent candles are kept.
func (r *KlineRepository) GetKlines(ctx context.Context, query market_data.KlineQuery) (_ []market_data.OHLCV, err error) {
	if query.Symbol == "" || query.Interval == "" {
		return nil, errors.NewValidationError("query", "symbol and interval are required", query)
	}
	defer observe("get_klines", time.Now(), &err)

	sql := fmt.Sprintf(`
		SELECT symbol, interval, open_time, open, high, low, close, volume
		FROM %s FINAL
		WHERE symbol = ? AND interval = ?`, r.table)
	args := []interface{}{strings.ToUpper(query.Symbol), query.Interval}

	if !query.Start.IsZero() {
		sql += ` AND open_time >= ?`
		args = append(args, query.Start.UTC())
	}
	if !query.End.IsZero() {
		sql += ` AND open_time <= ?`
		args = append(args, query.End.UTC())
	}

	sql += ` ORDER BY open_time DESC`
	if query.Limit > 0 {
		sql += fmt.Sprintf(` LIMIT %d`, query.Limit)
	}

	var candles []market_data.OHLCV
	if err = r.conn.Select(ctx, &candles, sql, args...); err != nil {
		return nil, errors.Wrapf(err, "failed to select klines for %s", query.Symbol)
	}

	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// GetLatestKline returns the newest candle or errors.ErrNotFound
func (r *KlineRepository) GetLatestKline(ctx context.Context, symbol, interval string) (*market_data.OHLCV, error) {
	candles, err := r.GetKlines(ctx, market_data.KlineQuery{Symbol: symbol, Interval: interval, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, errors.NotFound("kline", symbol+":"+interval)
	}
	return &candles[0], nil
}
