package absensi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores built reports. Keys embed a version that Bump advances on
// every new event, so stale reports are never served after a write.
type Cache interface {
	Version(ctx context.Context) (int64, error)
	Bump(ctx context.Context) error
	Get(ctx context.Context, key string) (Riwayat, bool, error)
	Set(ctx context.Context, key string, r Riwayat) error
}

// RedisCache keeps reports in redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache builds a cache. A non-positive ttl defaults to one minute.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "absensi:riwayat"}
}

func (c *RedisCache) versionKey() string { return c.prefix + ":version" }

// Version returns the current write version, zero when unset.
func (c *RedisCache) Version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Bump advances the write version.
func (c *RedisCache) Bump(ctx context.Context) error {
	return c.client.Incr(ctx, c.versionKey()).Err()
}

// Get loads a report.
func (c *RedisCache) Get(ctx context.Context, key string) (Riwayat, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Riwayat{}, false, nil
	}
	if err != nil {
		return Riwayat{}, false, err
	}
	var r Riwayat
	if err := json.Unmarshal(raw, &r); err != nil {
		return Riwayat{}, false, fmt.Errorf("riwayat cache: %w", err)
	}
	return r, true, nil
}

// Set stores a report.
func (c *RedisCache) Set(ctx context.Context, key string, r Riwayat) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+":"+key, raw, c.ttl).Err()
}

func cacheKey(version int64, q Query) string {
	return fmt.Sprintf("v%d:%s:%s:a=%s:g=%s:w=%s", version, q.Start, q.End, q.Filter.AsramaID, q.Filter.Gender, q.Filter.WaliID)
}
