// Package notify holds the single transient notification slot of a screen.
package notify

import (
	"sync"
	"time"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

const DefaultTTL = 8 * time.Second

// Center shows at most one notification at a time. A new notification
// replaces the visible one and restarts the dismiss timer.
type Center struct {
	ttl time.Duration

	mu      sync.Mutex
	current *domain.Notification
	gen     uint64
	timer   *time.Timer
	closed  bool
}

func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{ttl: ttl}
}

func (c *Center) Show(n domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if n.ShownAt.IsZero() {
		n.ShownAt = time.Now().UTC()
	}
	c.current = &n
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
	}

	gen := c.gen
	c.timer = time.AfterFunc(c.ttl, func() {
		c.expire(gen)
	})
}

// Current returns the visible notification, if any.
func (c *Center) Current() (domain.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Notification{}, false
	}
	return *c.current, true
}

func (c *Center) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// Close dismisses the current notification and ignores later Show calls.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	c.closed = true
}

func (c *Center) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A timer that fired while a newer notification was being shown must not
	// clear it.
	if gen != c.gen {
		return
	}
	c.current = nil
	c.timer = nil
}

func (c *Center) clearLocked() {
	c.gen++
	c.current = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
