// Package lscache implements the listing cache of spec.md §4.9: raw
// listing bytes keyed by (session identity, path, mode), size-bounded
// with FIFO eviction by total byte count, and per-entry expiry via a
// scheduler.Timer subscribed to the cache-expire resource.
//
// Grounded on resolver.Cache's map+order FIFO shape, generalized from
// a fixed entry-count bound to a total-byte-size bound, and on
// ftpsession's use of scheduler.Timer.SetResource for a resource-driven
// expiry rather than a fixed constructor-time duration.
package lscache

import (
	"sync"
	"time"

	"github.com/lavv17/lftp-sub002/resource"
	"github.com/lavv17/lftp-sub002/scheduler"
)

// Mode distinguishes a short listing (bare names) from a long one
// (full detail), per spec.md §4.9.
type Mode int

const (
	ModeShort Mode = iota
	ModeLong
)

func (m Mode) String() string {
	if m == ModeLong {
		return "long"
	}
	return "short"
}

// Identity names the session a cached listing belongs to, so that two
// distinct logins to the same host don't collide, and so the cache can
// be purged wholesale when a session closes.
type Identity struct {
	Host string
	Port int
	User string
}

// Key addresses one cached listing.
type Key struct {
	Session Identity
	Path    string
	Mode    Mode
}

type entry struct {
	data  []byte
	timer *scheduler.Timer
}

func (e *entry) size() int { return len(e.data) }

// Cache is a process-wide, size-bounded listing cache. The zero value
// is not usable; construct with New.
type Cache struct {
	mu        sync.Mutex
	entries   map[Key]*entry
	order     []Key
	totalSize int
	maxSize   int // bytes; <=0 means unbounded
}

// New builds a Cache bounded to maxBytes total cached listing bytes.
func New(maxBytes int) *Cache {
	return &Cache{entries: make(map[Key]*entry), maxSize: maxBytes}
}

// Get returns a copy of the cached bytes for key, if present and not
// expired. Callers never receive the cache's own backing array: a
// concurrent eviction must not corrupt bytes already handed out, per
// spec.md §5's "the caller must copy bytes before yielding" shared-
// resource discipline.
func (c *Cache) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.timer != nil && e.timer.Stopped() {
		c.removeLocked(key)
		return nil, false
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, true
}

// Put stores data under key. store/closure configure the per-entry
// expiry timer via cache:expire, per spec.md §4.9's "SetResource(...
// cache-expire, closure)"; store may be nil to mean "never expires".
func (c *Cache) Put(key Key, data []byte, store resource.Store, closure string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, exists := c.entries[key]; exists {
		c.totalSize -= old.size()
		delete(c.entries, key)
		c.removeFromOrderLocked(key)
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	e := &entry{data: cp}
	if store != nil {
		d := time.Duration(resource.QueryDuration(store, resource.CacheExpire, closure, 0))
		if d > 0 {
			e.timer = scheduler.NewTimer(d)
		}
	}

	c.entries[key] = e
	c.order = append(c.order, key)
	c.totalSize += e.size()

	if c.maxSize > 0 {
		for c.totalSize > c.maxSize && len(c.order) > 0 {
			c.evictOldestLocked()
		}
	}
}

// Invalidate drops one cached entry, e.g. after a write to the path it
// describes.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// PurgeSession drops every entry belonging to identity, e.g. when a
// session is torn down.
func (c *Cache) PurgeSession(id Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keep []Key
	for _, k := range c.order {
		if k.Session == id {
			if e, ok := c.entries[k]; ok {
				c.totalSize -= e.size()
				delete(c.entries, k)
			}
			continue
		}
		keep = append(keep, k)
	}
	c.order = keep
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TotalSize reports the current total cached byte count.
func (c *Cache) TotalSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSize
}

func (c *Cache) removeLocked(key Key) {
	if e, ok := c.entries[key]; ok {
		c.totalSize -= e.size()
		delete(c.entries, key)
	}
	c.removeFromOrderLocked(key)
}

func (c *Cache) removeFromOrderLocked(key Key) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Cache) evictOldestLocked() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	if e, ok := c.entries[oldest]; ok {
		c.totalSize -= e.size()
		delete(c.entries, oldest)
	}
}
