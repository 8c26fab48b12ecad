package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"blpbridge/internal/model"
)

// HistoricalFetcher is the request path being decorated.
type HistoricalFetcher interface {
	HistoricalData(ctx context.Context, q model.HistoricalQuery) (model.HistoricalResult, error)
}

// Historical is a read-through Redis cache in front of a HistoricalFetcher.
// With a nil client it degrades to a pass-through, so a bridge deployed
// without Redis behaves identically minus the caching.
type Historical struct {
	inner  HistoricalFetcher
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewHistorical decorates fetcher with caching. A ttl of 0 defaults to 24
// hours, matching how long clients are told to hold the same responses.
func NewHistorical(rdb *redis.Client, ttl time.Duration, fetcher HistoricalFetcher, logger *slog.Logger) *Historical {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Historical{inner: fetcher, rdb: rdb, ttl: ttl, logger: logger}
}

// HistoricalData serves the query from Redis when possible, falling back to
// the provider and storing the result best-effort. Cache failures never fail
// the request.
func (c *Historical) HistoricalData(ctx context.Context, q model.HistoricalQuery) (model.HistoricalResult, error) {
	if c.rdb == nil {
		return c.inner.HistoricalData(ctx, q)
	}

	key := cacheKey(q)
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out model.HistoricalResult
		if err := json.Unmarshal(b, &out); err == nil {
			c.logger.Debug("historical cache hit", "key", key)
			return out, nil
		}
		// Corrupt entry; evict and refetch.
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := c.inner.HistoricalData(ctx, q)
	if err != nil {
		return model.HistoricalResult{}, err
	}

	if b, err := json.Marshal(out); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.logger.Warn("historical cache store failed",
				"key", key,
				"error", err)
		}
	}
	return out, nil
}

// cacheKey derives the Redis key from the query's entity tag, which already
// digests every query parameter.
func cacheKey(q model.HistoricalQuery) string {
	return "historical:" + strings.Trim(q.ETag(), `"`)
}
