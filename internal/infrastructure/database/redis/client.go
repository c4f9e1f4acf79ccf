// Package redis provides the Redis-backed deja-vu tally cache used by the
// amicability scorer.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moleculab/synthon-sieve/internal/config"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.CodeCacheError, "redis ping failed").
			WithDetail("addr=" + cfg.Addr)
	}
	return client, nil
}
