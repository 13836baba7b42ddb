package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	chclient "finsight/internal/adapters/clickhouse"
	pgclient "finsight/internal/adapters/postgres"
	redisclient "finsight/internal/adapters/redis"
)

const connectTimeout = 10 * time.Second

func connectCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	t.Cleanup(cancel)
	return ctx
}

// PostgresTx opens a transaction against the integration database. It is
// rolled back when the test ends, so nothing a test writes survives it.
func PostgresTx(t *testing.T) *sqlx.Tx {
	t.Helper()

	client, err := pgclient.NewClient(connectCtx(t), PostgresConfigFromEnv(t))
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	tx, err := client.DB().BeginTxx(context.Background(), nil)
	if err != nil {
		_ = client.Close()
		t.Fatalf("postgres: begin: %v", err)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
		_ = client.Close()
	})
	return tx
}

// ClickHouse connects to the integration ClickHouse
func ClickHouse(t *testing.T) driver.Conn {
	t.Helper()

	client, err := chclient.NewClient(connectCtx(t), ClickHouseConfigFromEnv(t))
	if err != nil {
		t.Fatalf("clickhouse: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client.Conn()
}

// Redis connects to the integration Redis test database, which is emptied
// before and after the test.
func Redis(t *testing.T) *goredis.Client {
	t.Helper()

	client, err := redisclient.NewClient(connectCtx(t), RedisConfigFromEnv(t))
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	rdb := client.Client()
	flush := func() error { return rdb.FlushDB(context.Background()).Err() }
	if err := flush(); err != nil {
		_ = client.Close()
		t.Fatalf("redis: flush: %v", err)
	}
	t.Cleanup(func() {
		_ = flush()
		_ = client.Close()
	})
	return rdb
}
