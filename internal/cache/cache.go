package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/island-getaway-service/internal/models"
)

// DefaultTTL is the forecast freshness window.
const DefaultTTL = 5 * time.Minute

// Cache stores forecasts by island id. The TTL is fixed when the cache is built.
// Get returns (forecast, true, nil) only for fresh entries; stale entries read as misses.
type Cache interface {
	Get(ctx context.Context, key string) (models.Forecast, bool, error)
	Set(ctx context.Context, key string, value models.Forecast) error
}

// Pinger is implemented by caches backed by a remote server. Used for health checks.
type Pinger interface {
	Ping() error
}

// InMemoryCache implements Cache with a mutex-guarded map.
// Stale entries are never deleted; the island catalog bounds the key set and Set overwrites in place.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	ttl  time.Duration
	now  func() time.Time
}

type cacheEntry struct {
	value      models.Forecast
	insertedAt time.Time
}

// NewInMemoryCache creates an in-memory cache. ttl <= 0 uses DefaultTTL; a nil clock uses time.Now.
func NewInMemoryCache(ttl time.Duration, now func() time.Time) *InMemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		ttl:  ttl,
		now:  now,
	}
}

// Get returns the forecast for key when it was stored less than TTL ago.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.Forecast, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok || !fresh(entry.insertedAt, c.now(), c.ttl) {
		return models.Forecast{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores the forecast, replacing any previous entry. Last writer wins.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.Forecast) error {
	c.mu.Lock()
	c.data[key] = cacheEntry{value: value, insertedAt: c.now()}
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, fresh or stale.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func fresh(insertedAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(insertedAt) < ttl
}
