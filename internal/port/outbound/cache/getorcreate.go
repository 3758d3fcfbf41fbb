package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// nullSentinel marks a cached negative result. JSON output never contains
// a lone NUL byte, so the sentinel cannot collide with a real value. The
// sentinel is invisible to callers: they observe a nil value, exactly as
// if the factory had just returned nothing.
var nullSentinel = []byte{0}

// GetOrCreate returns the cached value for key, invoking factory on a
// miss and storing the result, including a nil result (cache-penetration
// defense). Concurrent misses on the same key may invoke the factory more
// than once; callers needing at-most-one concurrent fill serialize around
// this call. Cache failures degrade to the factory: the cache is a
// performance layer, never a correctness dependency. Degraded writes are
// logged so outages stay observable.
func GetOrCreate[T any](ctx context.Context, c Cache, logger *zap.Logger, key string, ttl time.Duration, factory func(ctx context.Context) (*T, error)) (*T, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data, found, err := c.Get(ctx, key)
	if err == nil && found {
		if bytes.Equal(data, nullSentinel) {
			return nil, nil
		}
		var value T
		if jsonErr := json.Unmarshal(data, &value); jsonErr == nil {
			return &value, nil
		}
		// Corrupt entry: drop it and fall through to the factory.
		if removeErr := c.Remove(ctx, key); removeErr != nil {
			logger.Warn("corrupt cache entry removal failed",
				zap.String("key", key),
				zap.Error(removeErr))
		}
	}

	value, err := factory(ctx)
	if err != nil {
		return nil, err
	}

	if value == nil {
		if setErr := c.Set(ctx, key, nullSentinel, ttl); setErr != nil {
			logger.Warn("negative cache write failed",
				zap.String("key", key),
				zap.Error(setErr))
		}
		return nil, nil
	}

	data, err = json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal cache value for %q: %w", key, err)
	}
	if setErr := c.Set(ctx, key, data, ttl); setErr != nil {
		logger.Warn("cache write failed",
			zap.String("key", key),
			zap.Error(setErr))
	}

	return value, nil
}

// DecodeEntry deserializes a raw cache entry fetched through Get or
// GetMany, reporting negative-result sentinels as (nil, true).
func DecodeEntry[T any](data []byte) (*T, bool) {
	if bytes.Equal(data, nullSentinel) {
		return nil, true
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false
	}
	return &value, true
}

// EncodeEntry serializes a value for storage via Set, mapping nil to the
// negative-result sentinel.
func EncodeEntry[T any](value *T) ([]byte, error) {
	if value == nil {
		return nullSentinel, nil
	}
	return json.Marshal(value)
}
