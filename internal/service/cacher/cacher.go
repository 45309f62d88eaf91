package cacher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/media-frame-cache/internal/domain"
	"github.com/vertextoedge/media-frame-cache/internal/domain/event"
	"github.com/vertextoedge/media-frame-cache/internal/media"
	"github.com/vertextoedge/media-frame-cache/internal/port"
)

// Config contains frame cache configuration
type Config struct {
	MaxMemoryBytes   int64
	MaxMemoryPercent float64
	Workers          int
}

// DefaultConfig returns default frame cache configuration
func DefaultConfig() *Config {
	return &Config{
		MaxMemoryBytes:   2 * 1024 * 1024 * 1024, // 2GB
		MaxMemoryPercent: 50,
		Workers:          4,
	}
}

// Stats is a snapshot of cache bookkeeping
type Stats struct {
	MaxMemory  int64
	UsedMemory int64
	FrameSize  int64
	Resident   int
	Tracked    int
	Reserved   int
	Cached     int64
	Evicted    int64
	Declined   int64
}

// tracked is the bookkeeping record of one frame number. It survives
// eviction so a later Cache reuses the resolved frame.
type tracked struct {
	frame    *media.Frame
	size     int64
	resident bool
}

// FrameCache keeps decoded frames of one timeline within a memory budget.
// All bookkeeping is guarded by mu; decoding happens outside it.
type FrameCache struct {
	timeline   port.Timeline
	dispatcher event.EventDispatcher
	logger     *zap.Logger

	mu        sync.Mutex
	maxMemory int64
	used      int64
	frameSize int64
	reserved  int
	order     fifo
	frames    map[int]*tracked

	cached   int64
	evicted  int64
	declined int64

	estimated chan struct{}
}

// NewFrameCache creates a cache over timeline bounded by maxMemory bytes
func NewFrameCache(
	timeline port.Timeline,
	maxMemory int64,
	dispatcher event.EventDispatcher,
	logger *zap.Logger,
) *FrameCache {
	if dispatcher == nil {
		dispatcher = event.NewNullDispatcher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxMemory <= 0 {
		maxMemory = DefaultConfig().MaxMemoryBytes
	}
	return &FrameCache{
		timeline:   timeline,
		dispatcher: dispatcher,
		logger:     logger,
		maxMemory:  maxMemory,
		frames:     make(map[int]*tracked),
		estimated:  make(chan struct{}),
	}
}

// Timeline returns the timeline the cache serves
func (c *FrameCache) Timeline() port.Timeline {
	return c.timeline
}

// Request reports whether one more frame may be cached. Over budget, evict
// decides between evicting the oldest frames until the new one fits and
// declining without side effects. An approval reserves one frame of budget
// that the next Cache or Release consumes.
//
// Until a frame size is known, Request(false) approves only while nothing
// else is reserved, so a single decode establishes the estimate. Such a
// decline is not counted in Stats.Declined; Estimated reports when it is
// worth asking again.
func (c *FrameCache) Request(evict bool) bool {
	var evictions []event.DomainEvent

	c.mu.Lock()
	approved := true
	switch {
	case c.frameSize == 0:
		if !evict && c.reserved > 0 {
			approved = false
		}
	case !c.fitsLocked():
		if evict {
			// Make room for this frame only. Reservations still
			// outstanding are trimmed when they land.
			for c.used+c.frameSize > c.maxMemory {
				ev, ok := c.evictOldestLocked()
				if !ok {
					break
				}
				evictions = append(evictions, ev)
			}
		} else {
			approved = false
			c.declined++
		}
	}
	if approved {
		c.reserved++
	}
	c.mu.Unlock()

	c.dispatch(evictions)
	return approved
}

// fitsLocked reports whether one more frame fits next to the resident and
// reserved ones.
func (c *FrameCache) fitsLocked() bool {
	return c.used+int64(c.reserved+1)*c.frameSize <= c.maxMemory
}

// Estimated is closed once the first frame has been cached and a size
// estimate exists.
func (c *FrameCache) Estimated() <-chan struct{} {
	return c.estimated
}

// Release returns an approved reservation that will not be used.
func (c *FrameCache) Release() {
	c.mu.Lock()
	c.releaseLocked()
	c.mu.Unlock()
}

func (c *FrameCache) releaseLocked() {
	if c.reserved > 0 {
		c.reserved--
	}
}

// Cache decodes frame n and records it as resident. It is a no-op when the
// frame is already resident. Decoding runs outside the bookkeeping lock.
func (c *FrameCache) Cache(ctx context.Context, n int) error {
	c.mu.Lock()
	t, ok := c.frames[n]
	if ok && t.resident {
		c.releaseLocked()
		c.mu.Unlock()
		return nil
	}
	var frame *media.Frame
	if ok {
		frame = t.frame
	}
	c.mu.Unlock()

	if frame == nil {
		frame, ok = c.timeline.Frame(n)
		if !ok {
			c.Release()
			return domain.NewFrameError(n, domain.ErrFrameNotFound)
		}
	}

	size, err := frame.Cache(ctx)

	c.mu.Lock()
	c.releaseLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}

	t, ok = c.frames[n]
	if !ok {
		t = &tracked{frame: frame}
		c.frames[n] = t
	}
	if t.resident {
		// Another caller recorded it while we waited on the decode.
		c.mu.Unlock()
		return nil
	}
	t.resident = true
	t.size = size
	c.used += size
	if size > 0 {
		c.frameSize = size
		select {
		case <-c.estimated:
		default:
			close(c.estimated)
		}
	}
	c.order.push(n)
	c.cached++

	// A forced Request may have taken budget other reservations counted on.
	var evictions []event.DomainEvent
	for c.used > c.maxMemory && c.order.len() > 1 {
		ev, ok := c.evictOldestLocked()
		if !ok {
			break
		}
		evictions = append(evictions, ev)
	}
	used := c.used
	c.mu.Unlock()

	c.dispatch(evictions)

	c.logger.Debug("frame cached",
		zap.Int("frame", n),
		zap.Int64("size", size),
		zap.Int64("used", used),
		zap.Int64("max", c.maxMemory))

	c.dispatcher.Dispatch(event.NewFrameCached(c.timeline.ID(), n, size, used))
	return nil
}

// EnsureCached blocks until frame n is resident, evicting if necessary.
func (c *FrameCache) EnsureCached(ctx context.Context, n int) error {
	if c.IsCached(n) {
		return nil
	}
	c.Request(true)
	return c.Cache(ctx, n)
}

// IsCached reports whether frame n is resident
func (c *FrameCache) IsCached(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.frames[n]
	return ok && t.resident
}

// Cached returns resident frame numbers in cache-insertion order
func (c *FrameCache) Cached() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.snapshot()
}

// UsedMemory returns the bytes held by resident frames
func (c *FrameCache) UsedMemory() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// MaxMemory returns the memory budget
func (c *FrameCache) MaxMemory() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxMemory
}

// FrameSize returns the size of the most recently cached frame
func (c *FrameCache) FrameSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameSize
}

// Stats returns a snapshot of the cache state
func (c *FrameCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		MaxMemory:  c.maxMemory,
		UsedMemory: c.used,
		FrameSize:  c.frameSize,
		Resident:   c.order.len(),
		Tracked:    len(c.frames),
		Reserved:   c.reserved,
		Cached:     c.cached,
		Evicted:    c.evicted,
		Declined:   c.declined,
	}
}

func (c *FrameCache) dispatch(events []event.DomainEvent) {
	for _, ev := range events {
		c.dispatcher.Dispatch(ev)
	}
}

// logStats writes a one-line summary of the cache state
func (c *FrameCache) logStats(msg string, elapsed time.Duration) {
	s := c.Stats()
	c.logger.Info(msg,
		zap.String("media_id", c.timeline.ID()),
		zap.Int("resident", s.Resident),
		zap.Int64("used", s.UsedMemory),
		zap.Int64("max", s.MaxMemory),
		zap.Int64("evicted", s.Evicted),
		zap.Duration("elapsed", elapsed))
}
