// Package cache provides a small in-memory TTL cache with periodic cleanup.
// It backs the per-user conversation session registry, where expiry doubles
// as the idle-session abandonment policy.
package cache

import (
	"context"
	"sync"
	"time"
)

// Config holds the cache configuration.
type Config struct {
	// DefaultTTL is applied by Set; SetWithTTL overrides it per entry.
	DefaultTTL time.Duration
	// CleanupInterval is how often expired entries are swept. Zero disables
	// the background sweeper; expired entries are then dropped lazily on Get.
	CleanupInterval time.Duration
	// MaxItems bounds the cache; zero means unbounded. When the bound is hit
	// the entry closest to expiry is evicted.
	MaxItems int
	// OnEviction, when set, is called for every removed entry.
	OnEviction func(key string, value any)
}

type item struct {
	value     any
	expiresAt time.Time
}

// Cache is a thread-safe map with per-entry expiry.
type Cache struct {
	mu     sync.RWMutex
	items  map[string]item
	config Config

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new cache and starts its cleanup goroutine when a cleanup
// interval is configured. Call Close to stop it.
func New(config Config) *Cache {
	c := &Cache{
		items:  make(map[string]item),
		config: config,
		done:   make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Get retrieves a value. Expired entries are treated as absent.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(it.expiresAt) {
		c.Delete(context.Background(), key)
		return nil, false
	}
	return it.value, true
}

// Set stores a value with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.MaxItems > 0 && len(c.items) >= c.config.MaxItems {
		if _, exists := c.items[key]; !exists {
			c.evictOldestLocked()
		}
	}
	c.items[key] = item{value: value, expiresAt: time.Now().Add(ttl)}
}

// Delete removes a value.
func (c *Cache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	it, ok := c.items[key]
	if ok {
		delete(c.items, key)
	}
	c.mu.Unlock()

	if ok && c.config.OnEviction != nil {
		c.config.OnEviction(key, it.value)
	}
}

// Len returns the number of entries, including not-yet-swept expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, it := range c.items {
		if oldestKey == "" || it.expiresAt.Before(oldest) {
			oldestKey, oldest = key, it.expiresAt
		}
	}
	if oldestKey != "" {
		it := c.items[oldestKey]
		delete(c.items, oldestKey)
		if c.config.OnEviction != nil {
			c.config.OnEviction(oldestKey, it.value)
		}
	}
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()
	var evicted []struct {
		key   string
		value any
	}

	c.mu.Lock()
	for key, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, key)
			evicted = append(evicted, struct {
				key   string
				value any
			}{key, it.value})
		}
	}
	c.mu.Unlock()

	if c.config.OnEviction != nil {
		for _, e := range evicted {
			c.config.OnEviction(e.key, e.value)
		}
	}
}
