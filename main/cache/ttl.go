// Package cache holds small in-process caches shared by the server and the
// admin tools.
package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const DefaultTTL = 5 * time.Minute

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTLCache keeps values for a fixed time. Expired entries are dropped on read.
type TTLCache[K comparable, V any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock clockwork.Clock
	items map[K]entry[V]
}

// NewTTL returns a cache with ttl, DefaultTTL when ttl <= 0. A nil
// clock means the real one.
func NewTTL[K comparable, V any](ttl time.Duration, clock clockwork.Clock) *TTLCache[K, V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TTLCache[K, V]{ttl: ttl, clock: clock, items: map[K]entry[V]{}}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(e.expires) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, expires: c.clock.Now().Add(c.ttl)}
}

func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.items)
}

func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
