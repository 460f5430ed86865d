package store

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/solar-kit-sizing/internal/solar"
)

type cacheEntry struct {
	profile  solar.IrradianceProfile
	storedAt time.Time
}

// MemoryCache is a concurrency-safe in-memory irradiance cache.
type MemoryCache struct {
	mu sync.RWMutex

	// key: coordinate key
	data map[string]cacheEntry
	// keys in insertion order, oldest first
	order []string

	// retention configuration
	maxEntries int           // max number of cached points
	maxAge     time.Duration // optional max age of an entry

	now func() time.Time
}

// NewMemoryCache creates a new MemoryCache with optional limits.
// If maxEntries or maxAge is <= 0, it is treated as unlimited.
func NewMemoryCache(maxEntries int, maxAge time.Duration) *MemoryCache {
	return &MemoryCache{
		data:       make(map[string]cacheEntry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Set stores a profile for a key and enforces retention.
func (c *MemoryCache) Set(_ context.Context, key string, profile solar.IrradianceProfile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.data[key]; ok {
		c.removeFromOrder(key)
	}
	profile.MonthlyAverages = append([]float64(nil), profile.MonthlyAverages...)
	c.data[key] = cacheEntry{profile: profile, storedAt: c.now()}
	c.order = append(c.order, key)

	// Enforce retention by count.
	if c.maxEntries > 0 && len(c.order) > c.maxEntries {
		over := len(c.order) - c.maxEntries
		for _, k := range c.order[:over] {
			delete(c.data, k)
		}
		c.order = append([]string(nil), c.order[over:]...)
	}

	// Enforce retention by age.
	if c.maxAge > 0 {
		cutoff := c.now().Add(-c.maxAge)
		i := 0
		for ; i < len(c.order); i++ {
			if !c.data[c.order[i]].storedAt.Before(cutoff) {
				break
			}
			delete(c.data, c.order[i])
		}
		if i > 0 {
			c.order = append([]string(nil), c.order[i:]...)
		}
	}
	return nil
}

// Get returns the cached profile for a key, if present and not expired.
func (c *MemoryCache) Get(_ context.Context, key string) (solar.IrradianceProfile, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key]
	if !ok {
		return solar.IrradianceProfile{}, false, nil
	}
	if c.maxAge > 0 && c.now().Sub(e.storedAt) > c.maxAge {
		return solar.IrradianceProfile{}, false, nil
	}
	p := e.profile
	p.MonthlyAverages = append([]float64(nil), p.MonthlyAverages...)
	return p, true, nil
}

// Len returns the number of cached points, expired ones included until evicted.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func (c *MemoryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
