package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/cache"
)

const (
	defaultCacheTTL = 1 * time.Hour

	// scanBatch bounds how many keys a single SCAN page returns during
	// prefix removal.
	scanBatch = 256
)

// cacheStore implements cache.Cache on a Redis backend. Values are
// opaque byte blobs; entry encoding belongs to the caller.
type cacheStore struct {
	client     *redis.Client
	defaultTTL time.Duration
	counters   cache.Counters
}

// NewCache creates a new Cache backed by Redis.
func NewCache(client *redis.Client, defaultTTL time.Duration) cache.Cache {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	return &cacheStore{
		client:     client,
		defaultTTL: defaultTTL,
	}
}

func (c *cacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			c.counters.Record(false)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %q from cache: %w", key, err)
	}

	c.counters.Record(true)
	return data, true, nil
}

func (c *cacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %q in cache: %w", key, err)
	}
	return nil
}

func (c *cacheStore) Remove(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("remove %q from cache: %w", key, err)
	}
	return nil
}

func (c *cacheStore) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check %q in cache: %w", key, err)
	}
	return count > 0, nil
}

func (c *cacheStore) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget from cache: %w", err)
	}

	result := make(map[string][]byte, len(keys))
	for i, v := range values {
		if v == nil {
			c.counters.Record(false)
			continue
		}
		s, ok := v.(string)
		if !ok {
			c.counters.Record(false)
			continue
		}
		c.counters.Record(true)
		result[keys[i]] = []byte(s)
	}

	return result, nil
}

func (c *cacheStore) RemoveByPrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("scan prefix %q: %w", prefix, err)
		}

		if len(keys) > 0 {
			deleted, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("remove prefix %q: %w", prefix, err)
			}
			removed += int(deleted)
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (c *cacheStore) Stats() cache.Stats {
	return c.counters.Stats()
}
