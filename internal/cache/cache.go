package cache

import (
	"sync"
	"time"
)

// MemoryCache is an in-memory cache with aligned expiry. Expired entries are
// never returned but are only dropped when overwritten.
type MemoryCache[P any] struct {
	mu     sync.RWMutex
	items  map[string]entry[P]
	maxAge time.Duration
	now    Clock
}

type entry[P any] struct {
	payload   P
	expiresAt time.Time
}

// NewMemory creates a memory cache whose entries live until the next
// maxAge-aligned boundary.
func NewMemory[P any](maxAge time.Duration) *MemoryCache[P] {
	return &MemoryCache[P]{
		items:  make(map[string]entry[P]),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// WithClock replaces the time source. It must be called before the cache is shared.
func (c *MemoryCache[P]) WithClock(clock Clock) *MemoryCache[P] {
	c.now = clock
	return c
}

func (c *MemoryCache[P]) Get(key string) (P, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero P
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !e.expiresAt.After(c.now()) {
		return zero, false
	}
	return e.payload, true
}

func (c *MemoryCache[P]) Set(key string, payload P) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[P]{
		payload:   payload,
		expiresAt: AlignedExpiry(c.now(), c.maxAge),
	}
}

// ExpiresAt reports the stored expiry for key, including expired entries.
func (c *MemoryCache[P]) ExpiresAt(key string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	return e.expiresAt, ok
}

// Len counts stored entries, expired ones included.
func (c *MemoryCache[P]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Ensure MemoryCache implements Cache interface
var _ Cache[[]byte] = (*MemoryCache[[]byte])(nil)
