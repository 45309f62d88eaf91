package cacher

import (
	"go.uber.org/zap"

	"github.com/vertextoedge/media-frame-cache/internal/domain/event"
)

// fifo keeps resident frame numbers in cache-insertion order
type fifo struct {
	items []int
}

func (q *fifo) push(n int) {
	q.items = append(q.items, n)
}

func (q *fifo) pop() (int, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	n := q.items[0]
	q.items = q.items[1:]
	return n, true
}

func (q *fifo) remove(n int) bool {
	for i, v := range q.items {
		if v == n {
			q.items = append(q.items[:i:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

func (q *fifo) len() int {
	return len(q.items)
}

func (q *fifo) snapshot() []int {
	return append([]int(nil), q.items...)
}

// Evict releases frame n's pixels. The tracking entry is kept so a later
// Cache reuses the resolved frame. Returns false if n was not resident.
func (c *FrameCache) Evict(n int) bool {
	c.mu.Lock()
	t, ok := c.frames[n]
	if !ok || !t.resident {
		c.mu.Unlock()
		return false
	}
	c.order.remove(n)
	ev := c.evictLocked(n, t)
	c.mu.Unlock()

	c.dispatcher.Dispatch(ev)
	return true
}

// Clear evicts every resident frame and drops all reservations.
func (c *FrameCache) Clear() int {
	var evictions []event.DomainEvent

	c.mu.Lock()
	for {
		ev, ok := c.evictOldestLocked()
		if !ok {
			break
		}
		evictions = append(evictions, ev)
	}
	c.reserved = 0
	c.mu.Unlock()

	c.dispatch(evictions)
	if len(evictions) > 0 {
		c.logger.Info("frame cache cleared",
			zap.String("media_id", c.timeline.ID()),
			zap.Int("evicted", len(evictions)))
	}
	return len(evictions)
}

// evictOldestLocked evicts the first frame in cache-insertion order
func (c *FrameCache) evictOldestLocked() (event.DomainEvent, bool) {
	for {
		n, ok := c.order.pop()
		if !ok {
			return nil, false
		}
		t, ok := c.frames[n]
		if !ok || !t.resident {
			continue
		}
		return c.evictLocked(n, t), true
	}
}

func (c *FrameCache) evictLocked(n int, t *tracked) event.DomainEvent {
	t.frame.ClearCache()
	t.resident = false
	c.used -= t.size
	if c.used < 0 {
		c.used = 0
	}
	c.evicted++

	c.logger.Debug("frame evicted",
		zap.Int("frame", n),
		zap.Int64("size", t.size),
		zap.Int64("used", c.used))

	return event.NewFrameEvicted(c.timeline.ID(), n, t.size, c.used)
}
