package utils

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisOptions accepts a redis:// URL or a bare host:port. A pool size of
// zero keeps the go-redis default. The ledger holds one connection per
// instruction for its WATCH span, so busy deployments raise it.
func redisOptions(url, password string, db, poolSize int) *redis.Options {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{
			Addr:     url,
			Password: password,
			DB:       db,
		}
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}
	return opts
}

// NewRedisClient connects and pings within five seconds.
func NewRedisClient(url, password string, db, poolSize int) (*redis.Client, error) {
	opts := redisOptions(url, password, db, poolSize)
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}

	slog.Info("connected to redis", "addr", opts.Addr, "db", opts.DB, "pool_size", opts.PoolSize)
	return client, nil
}

// RedisHealthCheck pings with a two second budget.
func RedisHealthCheck(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	return nil
}
