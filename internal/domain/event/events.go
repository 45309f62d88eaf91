package event

import (
	"time"
)

// Event names
const (
	NameFrameCached        = "frame.cached"
	NameFrameEvicted       = "frame.evicted"
	NameSequenceDiscovered = "sequence.discovered"
	NameMediaLoaded        = "media.loaded"
	NameSweepCompleted     = "sweep.completed"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// FrameCached is raised when a frame's pixels become resident
type FrameCached struct {
	BaseEvent
	MediaID    string
	Frame      int
	Size       int64
	UsedMemory int64
}

// EventName returns the event name
func (e FrameCached) EventName() string {
	return NameFrameCached
}

// NewFrameCached creates a new FrameCached event
func NewFrameCached(mediaID string, frame int, size, used int64) FrameCached {
	return FrameCached{
		BaseEvent:  BaseEvent{Timestamp: time.Now()},
		MediaID:    mediaID,
		Frame:      frame,
		Size:       size,
		UsedMemory: used,
	}
}

// FrameEvicted is raised when a frame's pixels are released
type FrameEvicted struct {
	BaseEvent
	MediaID    string
	Frame      int
	Size       int64
	UsedMemory int64
}

// EventName returns the event name
func (e FrameEvicted) EventName() string {
	return NameFrameEvicted
}

// NewFrameEvicted creates a new FrameEvicted event
func NewFrameEvicted(mediaID string, frame int, size, used int64) FrameEvicted {
	return FrameEvicted{
		BaseEvent:  BaseEvent{Timestamp: time.Now()},
		MediaID:    mediaID,
		Frame:      frame,
		Size:       size,
		UsedMemory: used,
	}
}

// SequenceDiscovered is raised when a scan produces a sequence
type SequenceDiscovered struct {
	BaseEvent
	Pattern string
	Start   int
	End     int
	Count   int
	Missing int
}

// EventName returns the event name
func (e SequenceDiscovered) EventName() string {
	return NameSequenceDiscovered
}

// NewSequenceDiscovered creates a new SequenceDiscovered event
func NewSequenceDiscovered(pattern string, start, end, count, missing int) SequenceDiscovered {
	return SequenceDiscovered{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Pattern:   pattern,
		Start:     start,
		End:       end,
		Count:     count,
		Missing:   missing,
	}
}

// MediaLoaded is raised when a timeline finishes construction
type MediaLoaded struct {
	BaseEvent
	MediaID string
	Path    string
	Kind    string
	Frames  int
	Valid   bool
	Error   string
}

// EventName returns the event name
func (e MediaLoaded) EventName() string {
	return NameMediaLoaded
}

// NewMediaLoaded creates a new MediaLoaded event
func NewMediaLoaded(mediaID, path, kind string, frames int, err error) MediaLoaded {
	e := MediaLoaded{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		MediaID:   mediaID,
		Path:      path,
		Kind:      kind,
		Frames:    frames,
		Valid:     err == nil,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// SweepCompleted is raised when a look-ahead sweep ends
type SweepCompleted struct {
	BaseEvent
	MediaID   string
	SweepID   string
	Scheduled int
	Cached    int
	Failed    int
	Reason    string
	Duration  time.Duration
}

// EventName returns the event name
func (e SweepCompleted) EventName() string {
	return NameSweepCompleted
}

// NewSweepCompleted creates a new SweepCompleted event
func NewSweepCompleted(mediaID, sweepID string, scheduled, cached, failed int, reason string, duration time.Duration) SweepCompleted {
	return SweepCompleted{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		MediaID:   mediaID,
		SweepID:   sweepID,
		Scheduled: scheduled,
		Cached:    cached,
		Failed:    failed,
		Reason:    reason,
		Duration:  duration,
	}
}
