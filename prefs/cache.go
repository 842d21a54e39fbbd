package prefs

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Cache holds recently read preferences
type Cache interface {
	// Get returns a cached preference; false on miss or expiry
	Get(key string) (*Preference, bool)

	// Set stores a preference
	Set(p *Preference)

	// Invalidate drops one key
	Invalidate(key string)

	// Clear drops everything
	Clear()
}

type cacheEntry struct {
	pref     *Preference
	cachedAt time.Time
}

// InMemoryCache is a TTL cache. A zero TTL keeps entries until invalidated.
type InMemoryCache struct {
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

// NewInMemoryCache creates an empty cache
func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a copy of the cached preference
func (c *InMemoryCache) Get(key string) (*Preference, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.isValid(e) {
		return nil, false
	}
	return e.pref.clone(), true
}

// Set stores a copy of p
func (c *InMemoryCache) Set(p *Preference) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[p.Key] = cacheEntry{pref: p.clone(), cachedAt: c.now()}
}

// Invalidate drops one key
func (c *InMemoryCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops everything
func (c *InMemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *InMemoryCache) isValid(e cacheEntry) bool {
	if c.ttl > 0 {
		return c.now().Sub(e.cachedAt) <= c.ttl
	}
	return true
}

// CachedStore reads through a cache and invalidates it on writes
type CachedStore struct {
	store Store
	cache Cache
}

// NewCachedStore wraps store with cache
func NewCachedStore(store Store, cache Cache) *CachedStore {
	return &CachedStore{store: store, cache: cache}
}

// Get serves from the cache when possible
func (s *CachedStore) Get(ctx context.Context, key string) (*Preference, error) {
	if p, ok := s.cache.Get(key); ok {
		return p, nil
	}

	p, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.cache.Set(p)
	return p, nil
}

// Set writes through and refreshes the cached entry
func (s *CachedStore) Set(ctx context.Context, key string, value json.RawMessage) (*Preference, error) {
	s.cache.Invalidate(key)

	p, err := s.store.Set(ctx, key, value)
	if err != nil {
		return nil, err
	}
	s.cache.Set(p)
	return p, nil
}

// Delete removes from the store and the cache
func (s *CachedStore) Delete(ctx context.Context, key string) error {
	s.cache.Invalidate(key)
	return s.store.Delete(ctx, key)
}

// List always reads the store
func (s *CachedStore) List(ctx context.Context) ([]*Preference, error) {
	return s.store.List(ctx)
}
