package event

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// LoggingHandler logs all events
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// Handle logs the event
func (h *LoggingHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case FrameCached:
		h.logger.Debug("frame cached",
			zap.String("media_id", e.MediaID),
			zap.Int("frame", e.Frame),
			zap.Int64("size", e.Size),
			zap.String("used", humanize.IBytes(uint64(e.UsedMemory))),
		)
	case FrameEvicted:
		h.logger.Debug("frame evicted",
			zap.String("media_id", e.MediaID),
			zap.Int("frame", e.Frame),
			zap.Int64("size", e.Size),
			zap.String("used", humanize.IBytes(uint64(e.UsedMemory))),
		)
	case SequenceDiscovered:
		h.logger.Info("sequence discovered",
			zap.String("pattern", e.Pattern),
			zap.Int("start", e.Start),
			zap.Int("end", e.End),
			zap.Int("count", e.Count),
			zap.Int("missing", e.Missing),
		)
	case MediaLoaded:
		if e.Valid {
			h.logger.Info("media loaded",
				zap.String("media_id", e.MediaID),
				zap.String("path", e.Path),
				zap.String("kind", e.Kind),
				zap.Int("frames", e.Frames),
			)
		} else {
			h.logger.Warn("invalid media",
				zap.String("media_id", e.MediaID),
				zap.String("path", e.Path),
				zap.String("error", e.Error),
			)
		}
	case SweepCompleted:
		h.logger.Info("sweep completed",
			zap.String("media_id", e.MediaID),
			zap.String("sweep_id", e.SweepID),
			zap.Int("scheduled", e.Scheduled),
			zap.Int("cached", e.Cached),
			zap.Int("failed", e.Failed),
			zap.String("reason", e.Reason),
			zap.Duration("duration", e.Duration),
		)
	default:
		h.logger.Debug("domain event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *LoggingHandler) HandledEvents() []string {
	return []string{Wildcard}
}

// MetricsHandler collects counters from events
type MetricsHandler struct {
	framesCached  atomic.Int64
	framesEvicted atomic.Int64
	bytesCached   atomic.Int64
	bytesEvicted  atomic.Int64
	sequences     atomic.Int64
	sweeps        atomic.Int64
	decodeFailed  atomic.Int64
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// Handle updates metrics based on the event
func (h *MetricsHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case FrameCached:
		h.framesCached.Add(1)
		h.bytesCached.Add(e.Size)
	case FrameEvicted:
		h.framesEvicted.Add(1)
		h.bytesEvicted.Add(e.Size)
	case SequenceDiscovered:
		h.sequences.Add(1)
	case SweepCompleted:
		h.sweeps.Add(1)
		h.decodeFailed.Add(int64(e.Failed))
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *MetricsHandler) HandledEvents() []string {
	return []string{
		NameFrameCached,
		NameFrameEvicted,
		NameSequenceDiscovered,
		NameSweepCompleted,
	}
}

// GetMetrics returns current metrics
func (h *MetricsHandler) GetMetrics() map[string]int64 {
	return map[string]int64{
		"frames_cached":       h.framesCached.Load(),
		"frames_evicted":      h.framesEvicted.Load(),
		"bytes_cached":        h.bytesCached.Load(),
		"bytes_evicted":       h.bytesEvicted.Load(),
		"sequences_found":     h.sequences.Load(),
		"sweeps_completed":    h.sweeps.Load(),
		"sweep_decode_errors": h.decodeFailed.Load(),
	}
}

// CacheIndicator tracks which frames of each media are resident.
// It backs the cache-state strip drawn by the playback UI.
type CacheIndicator struct {
	mu       sync.RWMutex
	resident map[string]map[int]struct{}
}

// NewCacheIndicator creates a new CacheIndicator
func NewCacheIndicator() *CacheIndicator {
	return &CacheIndicator{resident: make(map[string]map[int]struct{})}
}

// Handle records frame availability changes
func (c *CacheIndicator) Handle(event DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := event.(type) {
	case FrameCached:
		frames, ok := c.resident[e.MediaID]
		if !ok {
			frames = make(map[int]struct{})
			c.resident[e.MediaID] = frames
		}
		frames[e.Frame] = struct{}{}
	case FrameEvicted:
		delete(c.resident[e.MediaID], e.Frame)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (c *CacheIndicator) HandledEvents() []string {
	return []string{NameFrameCached, NameFrameEvicted}
}

// IsResident reports whether frame of mediaID is currently cached.
func (c *CacheIndicator) IsResident(mediaID string, frame int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.resident[mediaID][frame]
	return ok
}

// Resident returns the sorted resident frames of mediaID.
func (c *CacheIndicator) Resident(mediaID string) []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	frames := make([]int, 0, len(c.resident[mediaID]))
	for f := range c.resident[mediaID] {
		frames = append(frames, f)
	}
	sort.Ints(frames)
	return frames
}

// Forget drops all state for mediaID.
func (c *CacheIndicator) Forget(mediaID string) {
	c.mu.Lock()
	delete(c.resident, mediaID)
	c.mu.Unlock()
}
