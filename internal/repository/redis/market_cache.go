package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"finsight/pkg/errors"
)

const keyPrefix = "finsight:md"

// MarketCache implements market_data.Cache using Redis.
// It holds the last known good answer of each market-data call.
type MarketCache struct {
	client *redis.Client
}

// NewMarketCache creates a new market data cache
func NewMarketCache(client *redis.Client) *MarketCache {
	return &MarketCache{client: client}
}

// Load decodes the cached value into dest. A miss returns errors.ErrNotFound.
func (c *MarketCache) Load(ctx context.Context, kind, key string, dest interface{}) error {
	redisKey := c.key(kind, key)

	data, err := c.client.Get(ctx, redisKey).Bytes()
	if err == redis.Nil {
		return errors.Wrapf(errors.ErrNotFound, "no cached %s for %s", kind, key)
	}
	if err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "failed to read %s from redis: %v", redisKey, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrapf(err, "failed to unmarshal cached %s", redisKey)
	}
	return nil
}

// Store writes value with ttl. A zero ttl keeps the key forever.
func (c *MarketCache) Store(ctx context.Context, kind, key string, value interface{}, ttl time.Duration) error {
	redisKey := c.key(kind, key)

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", redisKey)
	}
	if err := c.client.Set(ctx, redisKey, data, ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to write %s to redis", redisKey)
	}
	return nil
}

// Invalidate removes one cached entry
func (c *MarketCache) Invalidate(ctx context.Context, kind, key string) error {
	return c.client.Del(ctx, c.key(kind, key)).Err()
}

func (c *MarketCache) key(kind, key string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, kind, strings.ToUpper(key))
}
