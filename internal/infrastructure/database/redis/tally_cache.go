package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// TallyCache stores per-synthon neighbor tallies under prefixed string keys.
// It implements amicability.TallyCache.  Entries expire after the configured
// TTL so a rebuilt reference library gradually displaces stale tallies.
type TallyCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTallyCache wraps a connected client.
func NewTallyCache(client *redis.Client, prefix string, ttl time.Duration) *TallyCache {
	return &TallyCache{client: client, prefix: prefix, ttl: ttl}
}

// Get implements amicability.TallyCache.
func (c *TallyCache) Get(ctx context.Context, key string) (float64, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, errors.CodeCacheError, "tally cache read failed")
	}
	tally, err := strconv.ParseFloat(val, 64)
	if err != nil {
		// A corrupt entry is treated as a miss so it gets overwritten.
		return 0, false, nil
	}
	return tally, true, nil
}

// Set implements amicability.TallyCache.
func (c *TallyCache) Set(ctx context.Context, key string, tally float64) error {
	val := strconv.FormatFloat(tally, 'g', -1, 64)
	if err := c.client.Set(ctx, c.prefix+key, val, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "tally cache write failed")
	}
	return nil
}
