package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"finsight/internal/adapters/config"
	"finsight/pkg/errors"
)

const (
	pingTimeout     = 5 * time.Second
	connMaxLifetime = time.Hour
)

// Client owns the connection pool behind the analysis run store
type Client struct {
	db *sqlx.DB
}

// NewClient opens the pool and fails unless the server answers a ping
func NewClient(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "postgres: open")
	}

	open := max(cfg.MaxConns, 1)
	db.SetMaxOpenConns(open)
	db.SetMaxIdleConns(max(open/2, 1))
	db.SetConnMaxLifetime(connMaxLifetime)

	c := &Client{db: db}
	if err := c.Health(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "postgres: ping %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	}
	return c, nil
}

func (c *Client) DB() *sqlx.DB { return c.db }

func (c *Client) Close() error { return c.db.Close() }

// Health pings the server, bounded by pingTimeout
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.db.PingContext(ctx)
}
