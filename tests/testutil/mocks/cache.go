package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/cache"
)

// --- Cache Mock ---

// Cache is a mock implementation of cache.Cache backed by a plain map.
// Entries honor TTLs against the wall clock.
type Cache struct {
	mu sync.RWMutex

	// Storage
	entries map[string]cacheEntry

	counters cache.Counters

	// Call tracking
	Calls struct {
		Get            int
		Set            int
		Remove         int
		Exists         int
		GetMany        int
		RemoveByPrefix int
	}

	// Error injection
	Errors struct {
		Get            error
		Set            error
		Remove         error
		Exists         error
		GetMany        error
		RemoveByPrefix error
	}
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewCache creates a new mock Cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
	}
}

func (m *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Get++

	if m.Errors.Get != nil {
		return nil, false, m.Errors.Get
	}

	entry, ok := m.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		m.counters.Record(false)
		return nil, false, nil
	}
	m.counters.Record(true)
	return entry.value, true, nil
}

func (m *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Set++

	if m.Errors.Set != nil {
		return m.Errors.Set
	}

	if ttl <= 0 {
		ttl = time.Hour
	}
	m.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *Cache) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Remove++

	if m.Errors.Remove != nil {
		return m.Errors.Remove
	}

	delete(m.entries, key)
	return nil
}

func (m *Cache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.Calls.Exists++

	if m.Errors.Exists != nil {
		return false, m.Errors.Exists
	}

	entry, ok := m.entries[key]
	return ok && time.Now().Before(entry.expiresAt), nil
}

func (m *Cache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.GetMany++

	if m.Errors.GetMany != nil {
		return nil, m.Errors.GetMany
	}

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		entry, ok := m.entries[key]
		if ok && time.Now().Before(entry.expiresAt) {
			result[key] = entry.value
			m.counters.Record(true)
			continue
		}
		m.counters.Record(false)
	}
	return result, nil
}

func (m *Cache) RemoveByPrefix(ctx context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.RemoveByPrefix++

	if m.Errors.RemoveByPrefix != nil {
		return 0, m.Errors.RemoveByPrefix
	}

	removed := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (m *Cache) Stats() cache.Stats {
	return m.counters.Stats()
}

// Len reports the number of live entries.
func (m *Cache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Has reports raw key presence without hit accounting or expiry checks.
func (m *Cache) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok
}

// --- TokenBlacklist Mock ---

// TokenBlacklist is a mock implementation of cache.TokenBlacklist.
type TokenBlacklist struct {
	mu sync.RWMutex

	// Storage
	entries map[string]time.Time

	// Call tracking
	Calls struct {
		Add           int
		IsBlacklisted int
	}

	// Error injection
	Errors struct {
		Add           error
		IsBlacklisted error
	}
}

// NewTokenBlacklist creates a new mock TokenBlacklist.
func NewTokenBlacklist() *TokenBlacklist {
	return &TokenBlacklist{
		entries: make(map[string]time.Time),
	}
}

func (m *TokenBlacklist) Add(ctx context.Context, tokenID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Add++

	if m.Errors.Add != nil {
		return m.Errors.Add
	}

	if tokenID != "" {
		m.entries[tokenID] = time.Now().Add(ttl)
	}
	return nil
}

func (m *TokenBlacklist) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.Calls.IsBlacklisted++

	if m.Errors.IsBlacklisted != nil {
		return false, m.Errors.IsBlacklisted
	}

	expiry, ok := m.entries[tokenID]
	return ok && time.Now().Before(expiry), nil
}

// TTLOf returns the remaining lifetime recorded for a token id.
func (m *TokenBlacklist) TTLOf(tokenID string) (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expiry, ok := m.entries[tokenID]
	if !ok {
		return 0, false
	}
	return time.Until(expiry), true
}

var _ cache.Cache = (*Cache)(nil)
var _ cache.TokenBlacklist = (*TokenBlacklist)(nil)
