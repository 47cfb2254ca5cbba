package storage

import (
	"context"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wallet-portfolio/internal/config"
	apperrors "github.com/wallet-portfolio/internal/errors"
)

const cacheStoreName = "redis"

// RedisCache holds the client behind the report cache. Reports are rebuilt
// from Postgres on any cache failure, so timeouts are short and the client
// does not retry on its own.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects and pings Redis. An unreachable server is reported
// as unavailable; the caller then runs without a report cache.
func NewRedisCache(ctx context.Context, cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MaxRetries:   -1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolTimeout:  time.Second,
	})

	r := &RedisCache{client: client}
	if err := r.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return r, nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Ping checks Redis within a short deadline
func (r *RedisCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return apperrors.NewUnavailableError(cacheStoreName, err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Client returns the underlying Redis client
func (r *RedisCache) Client() *redis.Client {
	return r.client
}
