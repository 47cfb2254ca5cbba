package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/wallet-portfolio/internal/errors"
)

// ReportKind names a cached report
type ReportKind string

const (
	ReportChains     ReportKind = "chains"
	ReportTokens     ReportKind = "tokens"
	ReportTokenNames ReportKind = "names"
)

const reportKeyPrefix = "report"

// ReportCache caches per-user reporting results in Redis. Every key written
// for a user is tracked in an index set so the whole user can be invalidated
// after a recompute or a spam filter change.
type ReportCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewReportCache creates a new report cache
func NewReportCache(redis *RedisCache, ttl time.Duration) *ReportCache {
	return &ReportCache{
		redis: redis,
		ttl:   ttl,
	}
}

// GenerateCacheKey builds report:<user>:<kind>[:<variant>...]. User ids and
// variants are kept verbatim: base58 wallet addresses are case-sensitive.
func (c *ReportCache) GenerateCacheKey(userID string, kind ReportKind, variant ...string) string {
	parts := append([]string{reportKeyPrefix, userID, string(kind)}, variant...)
	return strings.Join(parts, ":")
}

func (c *ReportCache) indexKey(userID string) string {
	return strings.Join([]string{reportKeyPrefix, userID, "keys"}, ":")
}

// Set stores value as JSON under key and records the key in the user's index
func (c *ReportCache) Set(ctx context.Context, userID, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return apperrors.NewCacheError("marshal report", err)
	}

	pipe := c.redis.Client().TxPipeline()
	pipe.Set(ctx, key, data, c.ttl)
	pipe.SAdd(ctx, c.indexKey(userID), key)
	pipe.Expire(ctx, c.indexKey(userID), c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.NewCacheError("set report", err)
	}
	return nil
}

// Get loads a cached report into dest. A miss returns (false, nil).
func (c *ReportCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.redis.Client().Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, apperrors.NewCacheError("get report", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, apperrors.NewCacheError("unmarshal report", fmt.Errorf("key %s: %w", key, err))
	}
	return true, nil
}

// InvalidateUser drops every cached report of the user
func (c *ReportCache) InvalidateUser(ctx context.Context, userID string) error {
	index := c.indexKey(userID)
	keys, err := c.redis.Client().SMembers(ctx, index).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return apperrors.NewCacheError("list report keys", err)
	}

	keys = append(keys, index)
	if err := c.redis.Client().Del(ctx, keys...).Err(); err != nil {
		return apperrors.NewCacheError("invalidate reports", err)
	}
	return nil
}
