package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/cache"
)

const defaultCacheTTL = 1 * time.Hour

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// cacheStore implements cache.Cache in process memory. Used for tests
// and single-instance deployments; expired entries are dropped lazily
// on access.
type cacheStore struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	counters   cache.Counters
	now        func() time.Time
}

// NewCache creates a new in-memory Cache.
func NewCache(defaultTTL time.Duration) cache.Cache {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	return &cacheStore{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (c *cacheStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && e.expired(c.now()) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		ok = false
	}

	c.counters.Record(ok)
	if !ok {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *cacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *cacheStore) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *cacheStore) Exists(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && e.expired(c.now()) {
		return false, nil
	}
	return ok, nil
}

func (c *cacheStore) GetMany(_ context.Context, keys []string) (map[string][]byte, error) {
	now := c.now()
	result := make(map[string][]byte, len(keys))

	c.mu.RLock()
	for _, key := range keys {
		e, ok := c.entries[key]
		if ok && !e.expired(now) {
			result[key] = e.value
			c.counters.Record(true)
			continue
		}
		c.counters.Record(false)
	}
	c.mu.RUnlock()

	return result, nil
}

func (c *cacheStore) RemoveByPrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (c *cacheStore) Stats() cache.Stats {
	return c.counters.Stats()
}
