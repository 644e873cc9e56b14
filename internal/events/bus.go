package events

import (
	"log/slog"
	"sync"
)

// Handler reacts to one published event. Handlers run synchronously on the
// publisher's goroutine and must not assume any particular goroutine affinity.
type Handler func(Event)

// Bus is an in-process publish/subscribe dispatcher. Handlers are registered
// once at startup and kept for the process lifetime; Publish fans an event
// out to every handler registered for its name, in registration order.
type Bus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:   logger,
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for the given event name.
func (b *Bus) Subscribe(name string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], h)
	b.mu.Unlock()
}

// Publish delivers the event to every handler registered for its name and
// returns once all of them have run. A panic inside one handler is recovered
// and logged so it never reaches the publisher or stops later handlers.
func (b *Bus) Publish(ev Event) {
	if ev == nil {
		return
	}
	b.mu.RLock()
	handlers := b.handlers[ev.Name()]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ev, h)
	}
}

func (b *Bus) dispatch(ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event", ev.Name(), "panic", r)
		}
	}()
	h(ev)
}
