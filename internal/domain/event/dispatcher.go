package event

import (
	"sync"

	"go.uber.org/zap"
)

// Wildcard subscribes a handler to every event.
const Wildcard = "*"

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes the event
	Handle(event DomainEvent) error
	// HandledEvents returns the event names this handler handles
	HandledEvents() []string
}

// EventDispatcher dispatches domain events to registered handlers
type EventDispatcher interface {
	// Dispatch sends an event to all registered handlers
	Dispatch(event DomainEvent)
	// Subscribe registers a handler for events
	Subscribe(handler EventHandler)
	// Unsubscribe removes a handler
	Unsubscribe(handler EventHandler)
}

// InMemoryDispatcher delivers events to handlers in the calling goroutine,
// or on one goroutine per handler when async. Cache and scan code dispatch
// outside their own locks, so handlers may call back into them.
type InMemoryDispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
	async    bool
	logger   *zap.Logger
	inflight sync.WaitGroup
}

// NewInMemoryDispatcher creates a new InMemoryDispatcher
func NewInMemoryDispatcher(async bool) *InMemoryDispatcher {
	return &InMemoryDispatcher{
		handlers: make(map[string][]EventHandler),
		async:    async,
		logger:   zap.NewNop(),
	}
}

// WithLogger makes the dispatcher log handler failures.
func (d *InMemoryDispatcher) WithLogger(logger *zap.Logger) *InMemoryDispatcher {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// Dispatch sends an event to every handler subscribed to its name or to
// Wildcard. A handler subscribed to both receives it once.
func (d *InMemoryDispatcher) Dispatch(event DomainEvent) {
	for _, handler := range d.targets(event.EventName()) {
		if !d.async {
			d.deliver(handler, event)
			continue
		}
		d.inflight.Add(1)
		go func(h EventHandler) {
			defer d.inflight.Done()
			d.deliver(h, event)
		}(handler)
	}
}

func (d *InMemoryDispatcher) targets(name string) []EventHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()

	named := d.handlers[name]
	all := d.handlers[Wildcard]
	targets := make([]EventHandler, 0, len(named)+len(all))
	targets = append(targets, named...)
	for _, h := range all {
		if !contains(named, h) {
			targets = append(targets, h)
		}
	}
	return targets
}

func (d *InMemoryDispatcher) deliver(h EventHandler, event DomainEvent) {
	if err := h.Handle(event); err != nil {
		d.logger.Warn("event handler failed",
			zap.String("event", event.EventName()),
			zap.Error(err))
	}
}

// Flush blocks until asynchronously dispatched events have been handled.
func (d *InMemoryDispatcher) Flush() {
	d.inflight.Wait()
}

// Subscribe registers a handler for events
func (d *InMemoryDispatcher) Subscribe(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range handler.HandledEvents() {
		if !contains(d.handlers[name], handler) {
			d.handlers[name] = append(d.handlers[name], handler)
		}
	}
}

// Unsubscribe removes a handler
func (d *InMemoryDispatcher) Unsubscribe(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range handler.HandledEvents() {
		handlers := d.handlers[name]
		for i, h := range handlers {
			if h == handler {
				d.handlers[name] = append(handlers[:i:i], handlers[i+1:]...)
				break
			}
		}
		if len(d.handlers[name]) == 0 {
			delete(d.handlers, name)
		}
	}
}

func contains(handlers []EventHandler, h EventHandler) bool {
	for _, x := range handlers {
		if x == h {
			return true
		}
	}
	return false
}

// NullDispatcher drops every event
type NullDispatcher struct{}

// NewNullDispatcher creates a new NullDispatcher
func NewNullDispatcher() *NullDispatcher {
	return &NullDispatcher{}
}

func (d *NullDispatcher) Dispatch(event DomainEvent)       {}
func (d *NullDispatcher) Subscribe(handler EventHandler)   {}
func (d *NullDispatcher) Unsubscribe(handler EventHandler) {}
