package cache

import (
	"context"
	"time"
)

// Cache is the generic key/value cache-aside port. Backends must offer
// per-key TTL and key enumeration (for RemoveByPrefix); a backend without
// native enumeration has to keep its own key registry rather than the
// adapter reaching into backend internals.
type Cache interface {
	// Get retrieves the raw value for key. The boolean reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A non-positive ttl selects the
	// backend's default TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Exists checks key presence without counting toward hit accounting.
	Exists(ctx context.Context, key string) (bool, error)

	// GetMany bulk-probes the given keys in one round trip where the
	// backend allows. Missing keys are absent from the result map.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)

	// RemoveByPrefix deletes every key sharing prefix and returns the
	// number removed.
	RemoveByPrefix(ctx context.Context, prefix string) (int, error)

	// Stats returns the hit-rate accounting snapshot.
	Stats() Stats
}

// TokenBlacklist defines the interface for blacklisting revoked access
// credentials ahead of their natural expiry. Entries are ephemeral and
// live only inside the cache.
type TokenBlacklist interface {
	// Add blacklists an access-credential id. The ttl must be at least
	// the credential's remaining lifetime so eviction can never make a
	// revoked credential acceptable again.
	Add(ctx context.Context, tokenID string, ttl time.Duration) error

	// IsBlacklisted checks whether an access-credential id is blacklisted.
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
}
