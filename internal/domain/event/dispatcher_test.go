package event

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingHandler struct {
	mu     sync.Mutex
	names  []string
	events []DomainEvent
}

func (h *recordingHandler) Handle(event DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHandler) HandledEvents() []string { return h.names }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestInMemoryDispatcher_Routing(t *testing.T) {
	d := NewInMemoryDispatcher(false)
	cached := &recordingHandler{names: []string{NameFrameCached}}
	all := &recordingHandler{names: []string{Wildcard}}
	d.Subscribe(cached)
	d.Subscribe(all)

	d.Dispatch(NewFrameCached("m1", 1, 10, 10))
	d.Dispatch(NewFrameEvicted("m1", 1, 10, 0))

	if cached.count() != 1 {
		t.Errorf("cached handler events = %d, want 1", cached.count())
	}
	if all.count() != 2 {
		t.Errorf("wildcard handler events = %d, want 2", all.count())
	}

	d.Unsubscribe(cached)
	d.Dispatch(NewFrameCached("m1", 2, 10, 10))
	if cached.count() != 1 {
		t.Errorf("unsubscribed handler received event, count = %d", cached.count())
	}
}

func TestInMemoryDispatcher_Async(t *testing.T) {
	d := NewInMemoryDispatcher(true)
	h := &recordingHandler{names: []string{NameSweepCompleted}}
	d.Subscribe(h)

	for i := 0; i < 5; i++ {
		d.Dispatch(NewSweepCompleted("m1", "s1", 3, 3, 0, "completed", time.Second))
	}
	d.Flush()

	if h.count() != 5 {
		t.Errorf("async handler events = %d, want 5", h.count())
	}
}

func TestInMemoryDispatcher_DeliversOnce(t *testing.T) {
	d := NewInMemoryDispatcher(false)
	h := &recordingHandler{names: []string{NameFrameCached, Wildcard}}
	d.Subscribe(h)
	d.Subscribe(h)

	d.Dispatch(NewFrameCached("m1", 1, 10, 10))
	if h.count() != 1 {
		t.Errorf("handler events = %d, want 1", h.count())
	}
}

type failingHandler struct{}

func (failingHandler) Handle(DomainEvent) error { return errors.New("boom") }
func (failingHandler) HandledEvents() []string  { return []string{NameMediaLoaded} }

func TestInMemoryDispatcher_LogsHandlerErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewInMemoryDispatcher(false).WithLogger(zap.New(core))
	after := &recordingHandler{names: []string{NameMediaLoaded}}
	d.Subscribe(failingHandler{})
	d.Subscribe(after)

	d.Dispatch(NewMediaLoaded("m1", "/a.mov", "movie", 24, nil))

	if logs.FilterMessage("event handler failed").Len() != 1 {
		t.Errorf("logged = %v", logs.All())
	}
	if after.count() != 1 {
		t.Error("a failing handler stopped delivery to the next one")
	}
}

func TestCacheIndicator(t *testing.T) {
	c := NewCacheIndicator()
	d := NewInMemoryDispatcher(false)
	d.Subscribe(c)

	for _, f := range []int{3, 1, 2} {
		d.Dispatch(NewFrameCached("m1", f, 10, 10))
	}
	d.Dispatch(NewFrameCached("m2", 7, 10, 10))
	d.Dispatch(NewFrameEvicted("m1", 2, 10, 0))

	if got := c.Resident("m1"); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("Resident(m1) = %v, want [1 3]", got)
	}
	if !c.IsResident("m2", 7) || c.IsResident("m2", 1) {
		t.Error("IsResident(m2) mismatch")
	}

	c.Forget("m1")
	if got := c.Resident("m1"); len(got) != 0 {
		t.Errorf("Resident(m1) after Forget = %v", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetricsHandler()
	_ = m.Handle(NewFrameCached("m", 1, 100, 100))
	_ = m.Handle(NewFrameCached("m", 2, 100, 200))
	_ = m.Handle(NewFrameEvicted("m", 1, 100, 100))
	_ = m.Handle(NewSequenceDiscovered("/a/shot.####.exr", 1, 10, 10, 0))
	_ = m.Handle(NewSweepCompleted("m", "s", 5, 3, 2, "budget", time.Second))

	got := m.GetMetrics()
	want := map[string]int64{
		"frames_cached":       2,
		"frames_evicted":      1,
		"bytes_cached":        200,
		"bytes_evicted":       100,
		"sequences_found":     1,
		"sweeps_completed":    1,
		"sweep_decode_errors": 2,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetMetrics() = %v, want %v", got, want)
	}
}

func TestLoggingHandler(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := NewLoggingHandler(zap.New(core))

	_ = h.Handle(NewMediaLoaded("m", "/a/plate.mov", "movie", 48, nil))
	_ = h.Handle(NewMediaLoaded("m", "/a/plate.xyz", "invalid", 0, errors.New("unsupported")))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("log entries = %d, want 2", len(entries))
	}
	if entries[0].Message != "media loaded" || entries[1].Message != "invalid media" {
		t.Errorf("messages = %q, %q", entries[0].Message, entries[1].Message)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Errorf("invalid media level = %v, want warn", entries[1].Level)
	}
}
