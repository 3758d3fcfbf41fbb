package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/cache"
)

const blacklistKeyPrefix = "auth:blacklist:"

// tokenBlacklist implements cache.TokenBlacklist on top of the generic
// cache, so blacklisting works against whatever backend hosts the cache.
type tokenBlacklist struct {
	cache cache.Cache
}

// NewTokenBlacklist creates a TokenBlacklist backed by the given cache.
func NewTokenBlacklist(c cache.Cache) cache.TokenBlacklist {
	return &tokenBlacklist{cache: c}
}

func (b *tokenBlacklist) Add(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return nil
	}

	// The value is irrelevant, only presence is checked. The caller
	// sizes the ttl to at least the credential's remaining lifetime so
	// eviction can never resurrect a revoked credential.
	if err := b.cache.Set(ctx, blacklistKeyPrefix+tokenID, []byte("1"), ttl); err != nil {
		return fmt.Errorf("add token to blacklist: %w", err)
	}
	return nil
}

func (b *tokenBlacklist) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}

	found, err := b.cache.Exists(ctx, blacklistKeyPrefix+tokenID)
	if err != nil {
		return false, fmt.Errorf("check token blacklist: %w", err)
	}
	return found, nil
}
