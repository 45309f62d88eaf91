// Package ratelimiter throttles bursty triggers such as filesystem events.
package ratelimiter

import (
	"sync"
	"time"
)

// Limiter allows one action per interval. Triggers arriving early are
// coalesced into a single deferred signal on C once the interval has
// passed. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	pending  bool
	timer    *time.Timer
	fire     chan struct{}
}

// New creates a limiter allowing at most one action per interval.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		fire:     make(chan struct{}, 1),
	}
}

// Trigger reports whether the action may run now. Otherwise one deferred
// signal is scheduled on C, no matter how many triggers arrive meanwhile.
func (l *Limiter) Trigger() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending {
		return false
	}

	now := time.Now()
	wait := l.interval - now.Sub(l.last)
	if wait <= 0 {
		l.last = now
		return true
	}

	l.pending = true
	l.timer = time.AfterFunc(wait, l.release)
	return false
}

func (l *Limiter) release() {
	l.mu.Lock()
	if !l.pending {
		l.mu.Unlock()
		return
	}
	l.pending = false
	l.last = time.Now()
	l.mu.Unlock()

	select {
	case l.fire <- struct{}{}:
	default:
	}
}

// C delivers deferred actions.
func (l *Limiter) C() <-chan struct{} {
	return l.fire
}

// Pending reports whether a deferred signal is scheduled.
func (l *Limiter) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// Stop cancels any deferred signal and clears the limiter state.
func (l *Limiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.pending = false
	l.last = time.Time{}
}

// Interval returns the configured rate limit interval.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
