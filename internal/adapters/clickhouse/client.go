package clickhouse

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"finsight/internal/adapters/config"
	"finsight/pkg/errors"
)

const (
	dialTimeout = 5 * time.Second
	pingTimeout = 5 * time.Second
)

// Client owns the native-protocol connection used by the kline store
type Client struct {
	conn driver.Conn
}

func options(cfg config.ClickHouseConfig) *clickhouse.Options {
	return &clickhouse.Options{
		Addr: []string{net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Compression:     &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		DialTimeout:     dialTimeout,
		ConnMaxLifetime: time.Hour,
		Settings:        clickhouse.Settings{"max_execution_time": 60},
	}
}

// NewClient connects and fails unless the server answers a ping
func NewClient(ctx context.Context, cfg config.ClickHouseConfig) (*Client, error) {
	opts := options(cfg)
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "clickhouse: open")
	}

	c := &Client{conn: conn}
	if err := c.Health(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "clickhouse: ping %s", opts.Addr[0])
	}
	return c, nil
}

func (c *Client) Conn() driver.Conn { return c.conn }

func (c *Client) Close() error { return c.conn.Close() }

// Health pings the server, bounded by pingTimeout
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.conn.Ping(ctx)
}
