package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/mrz1836/go-cache"
)

// Redis connection pool defaults.
const (
	redisMaxActive       = 10
	redisMaxIdle         = 5
	redisMaxConnLifetime = 0
	redisIdleTimeout     = 240 * time.Second
)

// Redis is a Store backed by a redis server through go-cache.
type Redis struct {
	client *cache.Client
}

// OpenRedis connects to the redis server at url (redis://host:port).
func OpenRedis(ctx context.Context, url string) (*Redis, error) {
	client, err := cache.Connect(
		ctx, url,
		redisMaxActive, redisMaxIdle,
		redisMaxConnLifetime, redisIdleTimeout,
		false, false,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// Get implements Store. Empty values written as tombstones read as absent.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := cache.Get(ctx, r.client, key)
	if errors.Is(err, redis.ErrNil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := cache.Set(ctx, r.client, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Close closes the connection pool.
func (r *Redis) Close() error {
	r.client.Close()
	return nil
}
