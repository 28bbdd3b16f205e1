// ABOUTME: Size-bounded repeat window keyed by string
// ABOUTME: Lets callers report a recurring condition once per window instead of every cycle

package dedupe

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache remembers when each key was last reported. Entries older than the
// TTL count as unseen; the LRU bound keeps memory flat for large fleets.
type Cache struct {
	mu   sync.Mutex
	seen *lru.Cache[string, time.Time]
	ttl  time.Duration
	now  func() time.Time
}

// New creates a cache holding at most maxSize keys.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	seen, _ := lru.New[string, time.Time](maxSize)
	return &Cache{
		seen: seen,
		ttl:  ttl,
		now:  time.Now,
	}
}

// CheckAndMark reports whether key was marked within the TTL. A new or
// expired key is marked and reported as unseen. The window is not extended
// by repeats, so a persistent condition resurfaces once per TTL.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if at, ok := c.seen.Get(key); ok && now.Sub(at) < c.ttl {
		return true
	}
	c.seen.Add(key, now)
	return false
}

// Forget clears key so its next occurrence is reported again.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen.Remove(key)
}

// Len returns the number of tracked keys, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen.Len()
}
