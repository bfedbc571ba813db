package resolver

import (
	"net"
	"sync"
	"time"
)

// entry is one cached resolution outcome.
type entry struct {
	addrs   []net.IP
	err     error
	expires time.Time
}

// Cache is a size-bounded, per-entry-expiring address cache, per
// spec.md §4.4's "Resolver keeps an expiring cache of host -> address
// list, sized and timed by net:dns-cache-size / net:dns-cache-expire."
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	order   []string // insertion order, for simple FIFO eviction
	maxSize int
	ttl     time.Duration
}

// NewCache builds a cache bounded to maxSize entries with the given
// time-to-live. maxSize<=0 means unbounded; ttl<=0 means entries never
// expire on their own (still subject to eviction).
func NewCache(maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the cached result for key if present and unexpired.
func (c *Cache) Get(key string, now time.Time) ([]net.IP, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, nil, false
	}
	if !e.expires.IsZero() && now.After(e.expires) {
		delete(c.entries, key)
		return nil, nil, false
	}
	return e.addrs, e.err, true
}

// Put stores a resolution outcome, evicting the oldest entry if the
// cache is at capacity.
func (c *Cache) Put(key string, addrs []net.IP, err error, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		if c.maxSize > 0 && len(c.entries) >= c.maxSize {
			c.evictOldestLocked()
		}
		c.order = append(c.order, key)
	}
	var expires time.Time
	if c.ttl > 0 {
		expires = now.Add(c.ttl)
	}
	c.entries[key] = entry{addrs: addrs, err: err, expires: expires}
}

func (c *Cache) evictOldestLocked() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

// Invalidate removes key from the cache, if present.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
