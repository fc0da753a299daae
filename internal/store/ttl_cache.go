package store

import (
	"strings"
	"sync"
	"time"
)

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// ttlCache is a small expiring map used by remote backends to avoid a round
// trip for every dataset lookup. Entries are evicted lazily and by a
// background sweep.
type ttlCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]ttlEntry[V]
	ttl     time.Duration
	stopCh  chan struct{}
	once    sync.Once
}

func newTTLCache[V any](ttl time.Duration) *ttlCache[V] {
	c := &ttlCache[V]{
		entries: make(map[string]ttlEntry[V]),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go c.sweep()
	return c
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

func (c *ttlCache[V]) set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = ttlEntry[V]{value: value, expiresAt: time.Now().Add(c.ttl)}
}

func (c *ttlCache[V]) delete(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.entries, key)
	}
}

func (c *ttlCache[V]) deletePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

func (c *ttlCache[V]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// sweep periodically removes expired entries
func (c *ttlCache[V]) sweep() {
	interval := c.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

func (c *ttlCache[V]) stop() {
	c.once.Do(func() { close(c.stopCh) })
}
