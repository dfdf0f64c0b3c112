package bridge

import (
	"sync"

	"punter/internal/wire"
)

// Bus fans unsolicited server pushes out to store handlers, keyed by event
// type. Dispatch is synchronous and in socket-delivery order; handlers must
// not block.
type Bus struct {
	mu      sync.Mutex
	nextSub int
	subs    map[string]map[int]func(wire.Event)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]func(wire.Event))}
}

// Subscribe registers a handler for one event type and returns an
// unsubscribe func.
func (b *Bus) Subscribe(eventType string, fn func(wire.Event)) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[int]func(wire.Event))
	}
	b.subs[eventType][id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		if m := b.subs[eventType]; m != nil {
			delete(m, id)
		}
		b.mu.Unlock()
	}
}

// Dispatch delivers ev to every subscriber of its type.
func (b *Bus) Dispatch(ev wire.Event) {
	b.mu.Lock()
	handlers := make([]func(wire.Event), 0, len(b.subs[ev.Type]))
	for _, fn := range b.subs[ev.Type] {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
