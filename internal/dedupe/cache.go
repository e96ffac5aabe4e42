// ABOUTME: Bounded TTL set remembering which prompts went out on which connection
// ABOUTME: Lets the connection manager send a pending prompt at most once per socket

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key    string
	marked time.Time
}

// Cache is a size-limited set of keys that expire after a TTL. Keys are kept
// in mark order so the oldest can be evicted in O(1). Expired keys are
// dropped lazily when the cache is touched; there is no background goroutine.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a cache whose keys expire after ttl and which holds at most
// maxSize keys.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Seen reports whether key was marked and has not expired.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()
	_, ok := c.seen[key]
	return ok
}

// Mark records key, refreshing its age if already present.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()
	c.markLocked(key)
}

// CheckAndMark atomically marks key and reports whether it was already
// marked. Returns true for a duplicate.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()
	if _, ok := c.seen[key]; ok {
		return true
	}
	c.markLocked(key)
	return false
}

// Forget removes key.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.seen[key]; ok {
		c.order.Remove(el)
		delete(c.seen, key)
	}
}

// Len returns the number of live keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()
	return len(c.seen)
}

// markLocked must be called with mu held.
func (c *Cache) markLocked(key string) {
	now := c.now()
	if el, ok := c.seen[key]; ok {
		el.Value.(*entry).marked = now
		c.order.MoveToBack(el)
		return
	}

	for len(c.seen) >= c.maxSize {
		front := c.order.Front()
		c.order.Remove(front)
		delete(c.seen, front.Value.(*entry).key)
	}

	c.seen[key] = c.order.PushBack(&entry{key: key, marked: now})
}

// expireLocked drops expired keys from the front. Must be called with mu held.
func (c *Cache) expireLocked() {
	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		e := front.Value.(*entry)
		if now.Sub(e.marked) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, e.key)
	}
}
