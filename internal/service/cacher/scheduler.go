package cacher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/vertextoedge/media-frame-cache/internal/domain/event"
	"github.com/vertextoedge/media-frame-cache/internal/media"
)

// Direction is the order in which a sweep visits frames
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// ParseDirection converts "forward"/"backward"; anything else is Forward.
func ParseDirection(s string) Direction {
	if s == "backward" {
		return Backward
	}
	return Forward
}

// Reasons a sweep stops
const (
	StopCompleted = "completed"
	StopBudget    = "budget"
	StopCancelled = "cancelled"
)

// SweepResult summarizes one look-ahead sweep
type SweepResult struct {
	ID        string
	MediaID   string
	From      int
	Direction Direction
	Scheduled int
	Cached    int
	Failed    int
	Reason    string
	Duration  time.Duration
}

// Scheduler decodes frames ahead of playback. Image sequences decode on a
// bounded worker pool; movies decode serially because their frames share
// one decoder.
type Scheduler struct {
	cache      *FrameCache
	workers    int
	dispatcher event.EventDispatcher
	logger     *zap.Logger

	startMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	last    *SweepResult
}

// NewScheduler creates a new Scheduler
func NewScheduler(cache *FrameCache, cfg *Config, dispatcher event.EventDispatcher, logger *zap.Logger) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	if dispatcher == nil {
		dispatcher = event.NewNullDispatcher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cache:      cache,
		workers:    workers,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Start launches a sweep over every frame beginning at the frame nearest
// to from and wrapping around, in the given direction. A running sweep is
// cancelled and waited for first. Start returns the new sweep id.
func (s *Scheduler) Start(ctx context.Context, from int, dir Direction) string {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.Stop()
	s.Wait()

	id := uuid.NewString()
	sweepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.running = true
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	order := sweepOrder(s.cache.Timeline().Frames(), s.cache.Timeline().NearestFrame(from), dir)
	result := &SweepResult{
		ID:        id,
		MediaID:   s.cache.Timeline().ID(),
		From:      from,
		Direction: dir,
	}

	s.logger.Info("sweep started",
		zap.String("sweep_id", id),
		zap.Int("from", from),
		zap.String("direction", dir.String()),
		zap.Int("frames", len(order)))

	go func() {
		defer close(done)
		defer cancel()

		start := time.Now()
		if s.cache.Timeline().Kind() == media.KindMovie {
			s.sweepSerial(sweepCtx, order, result)
		} else {
			s.sweepPool(sweepCtx, order, result)
		}
		result.Duration = time.Since(start)

		s.mu.Lock()
		s.running = false
		s.last = result
		s.mu.Unlock()

		s.dispatcher.Dispatch(event.NewSweepCompleted(
			result.MediaID, result.ID, result.Scheduled, result.Cached, result.Failed,
			result.Reason, result.Duration))
		s.cache.logStats("sweep finished", result.Duration)
	}()

	return id
}

// sweepPool runs one decode task per frame on the worker pool.
func (s *Scheduler) sweepPool(ctx context.Context, order []int, result *SweepResult) {
	var cached, failed atomic.Int64
	p := pool.New().WithMaxGoroutines(s.workers)

	result.Reason = StopCompleted
	for _, n := range order {
		if ctx.Err() != nil {
			result.Reason = StopCancelled
			break
		}
		if s.cache.IsCached(n) {
			continue
		}
		if !s.reserve(ctx) {
			result.Reason = s.declineReason(ctx)
			break
		}
		result.Scheduled++

		n := n
		p.Go(func() {
			if ctx.Err() != nil {
				s.cache.Release()
				return
			}
			// A started decode runs to completion even if the sweep is cancelled.
			if err := s.cache.Cache(context.WithoutCancel(ctx), n); err != nil {
				failed.Add(1)
				return
			}
			cached.Add(1)
		})
	}
	p.Wait()

	result.Cached = int(cached.Load())
	result.Failed = int(failed.Load())
}

// sweepSerial decodes frames one at a time on the calling goroutine.
func (s *Scheduler) sweepSerial(ctx context.Context, order []int, result *SweepResult) {
	result.Reason = StopCompleted
	for _, n := range order {
		if ctx.Err() != nil {
			result.Reason = StopCancelled
			return
		}
		if s.cache.IsCached(n) {
			continue
		}
		if !s.reserve(ctx) {
			result.Reason = s.declineReason(ctx)
			return
		}
		result.Scheduled++
		if err := s.cache.Cache(context.WithoutCancel(ctx), n); err != nil {
			result.Failed++
			continue
		}
		result.Cached++
	}
}

// estimateRetry bounds the wait for a size estimate when the decode that
// should provide it fails.
const estimateRetry = 10 * time.Millisecond

// reserve asks the cache for budget for one frame. While no frame size is
// known only one decode may be reserved, so the sweep waits for it to land
// instead of treating the decline as a full cache.
func (s *Scheduler) reserve(ctx context.Context) bool {
	for {
		if s.cache.Request(false) {
			return true
		}
		if s.cache.FrameSize() > 0 {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-s.cache.Estimated():
		case <-time.After(estimateRetry):
		}
	}
}

func (s *Scheduler) declineReason(ctx context.Context) string {
	if ctx.Err() != nil {
		return StopCancelled
	}
	return StopBudget
}

// Stop cancels the running sweep. It does not wait for in-flight decodes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Wait blocks until the current sweep finishes and returns its result.
func (s *Scheduler) Wait() *SweepResult {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Running reports whether a sweep is in progress
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastResult returns the result of the most recently finished sweep
func (s *Scheduler) LastResult() *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// sweepOrder lists frames starting at from and wrapping around.
func sweepOrder(frames []int, from int, dir Direction) []int {
	if len(frames) == 0 {
		return nil
	}
	start := 0
	for i, f := range frames {
		if f == from {
			start = i
			break
		}
	}

	order := make([]int, 0, len(frames))
	for i := 0; i < len(frames); i++ {
		var idx int
		if dir == Backward {
			idx = (start - i + len(frames)) % len(frames)
		} else {
			idx = (start + i) % len(frames)
		}
		order = append(order, frames[idx])
	}
	return order
}
