package events

import (
	"log"
	"sync"
)

type Handler func(Event)

// Bus is a synchronous in-process event bus. Publish invokes the handlers
// registered for the event's type in registration order, in the caller's
// goroutine, so handlers run inside the same logical transaction as the
// publisher. A panicking handler is logged and does not stop the others.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
	}
}

func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := b.handlers[e.EventType()]
	b.mu.RUnlock()

	for _, h := range handlers {
		invoke(h, e)
	}
}

func invoke(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("events: handler for %s panicked: %v", e.EventType(), r)
		}
	}()
	h(e)
}
