// Package eventbus dispatches typed lifecycle events (fetches, network
// requests) to in-process subscribers such as the tracing layer.
package eventbus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// Handler processes events of type T.
type Handler[T any] func(context.Context, T)

type subscription struct {
	id uint64
	fn func(context.Context, any)
}

// Bus is an in-process event dispatcher keyed by event type.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[reflect.Type][]subscription
}

// New creates a new Bus.
func New() *Bus { return &Bus{handlers: make(map[reflect.Type][]subscription)} }

func (b *Bus) subscribe(t reflect.Type, fn func(context.Context, any)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[t] = append(b.handlers[t], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.handlers[t]
			for i, s := range subs {
				if s.id == id {
					subs = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(subs) == 0 {
				delete(b.handlers, t)
			} else {
				b.handlers[t] = subs
			}
		})
	}
}

// emit dispatches e to the handlers of its dynamic type, in subscription
// order. Handlers run on the publishing goroutine.
func (b *Bus) emit(ctx context.Context, e any) {
	t := reflect.TypeOf(e)
	b.mu.RLock()
	subs := b.handlers[t]
	b.mu.RUnlock()
	for _, s := range subs {
		s.fn(ctx, e)
	}
}

var global atomic.Pointer[Bus]

// Use sets the global bus. Passing nil disables event publishing.
func Use(b *Bus) { global.Store(b) }

// Subscribe registers h with the global bus. Without a global bus it is a
// no-op.
func Subscribe[T any](h Handler[T]) (unsubscribe func()) {
	b := global.Load()
	if b == nil {
		return func() {}
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	return b.subscribe(t, func(ctx context.Context, v any) { h(ctx, v.(T)) })
}

// Publish sends e through the global bus.
func Publish[T any](ctx context.Context, e T) {
	if b := global.Load(); b != nil {
		b.emit(ctx, e)
	}
}
