package executor

import (
	"sync"
	"time"
)

// Cooldown suppresses repeated executions of the same route within a
// time-to-live window. It is safe for concurrent use.
type Cooldown struct {
	seen  map[string]time.Time // route -> last execution
	ttl   time.Duration
	clock func() time.Time
	mu    sync.Mutex
}

// NewCooldown creates a Cooldown. A zero ttl disables it.
func NewCooldown(ttl time.Duration) *Cooldown {
	return &Cooldown{
		seen:  make(map[string]time.Time),
		ttl:   ttl,
		clock: time.Now,
	}
}

// Active reports whether route executed within the TTL window.
func (c *Cooldown) Active(route string) bool {
	if c.ttl <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.seen[route]
	return ok && c.clock().Sub(last) < c.ttl
}

// Mark records an execution of route now.
func (c *Cooldown) Mark(route string) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[route] = c.clock()
}

// Cleanup removes expired entries. Call it periodically to bound memory.
func (c *Cooldown) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	for route, ts := range c.seen {
		if now.Sub(ts) >= c.ttl {
			delete(c.seen, route)
		}
	}
}
