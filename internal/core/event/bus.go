package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered notification bus. Events emitted during tick N
// are delivered during tick N+1, after NotifySystem swapped the buffers,
// in the order they were emitted regardless of their type.
// Emit, SwapBuffers and DispatchAll are tick-goroutine only.
type Bus struct {
	mu       sync.RWMutex // only protects handler registration
	handlers map[reflect.Type][]func(any)
	front    []queued
	back     []queued
}

type queued struct {
	key reflect.Type
	ev  any
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]func(any))}
}

func keyOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Emit queues an event into the back buffer (will be delivered next tick).
func Emit[T any](b *Bus, event T) {
	b.back = append(b.back, queued{key: keyOf[T](), ev: event})
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := keyOf[T]()
	b.handlers[k] = append(b.handlers[k], func(ev any) { fn(ev.(T)) })
}

// SwapBuffers rotates back→front and starts an empty back buffer.
// Called once at tick start.
func (b *Bus) SwapBuffers() {
	clear(b.front)
	b.front, b.back = b.back, b.front[:0]
}

// DispatchAll delivers all front-buffer events to their subscribed handlers.
// Events emitted by a handler wait for the next swap.
func (b *Bus) DispatchAll() {
	for _, q := range b.front {
		b.mu.RLock()
		hs := b.handlers[q.key]
		b.mu.RUnlock()
		for _, h := range hs {
			h(q.ev)
		}
	}
}

// Pending returns the number of events waiting for the next swap.
func (b *Bus) Pending() int { return len(b.back) }
