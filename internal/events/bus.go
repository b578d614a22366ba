// Package events is a small typed in-process bus with bounded queues.
package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Bus fans events of type T out to subscribers. Each subscriber owns a
// bounded queue; Publish never blocks and drops events for full queues.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   map[*Subscription[T]]struct{}
	buffer int
	onDrop func()
	closed bool
	logger zerolog.Logger
}

// Subscription receives events from a Bus.
type Subscription[T any] struct {
	name string
	ch   chan T
	bus  *Bus[T]
	once sync.Once
}

// NewBus creates a bus whose subscriber queues hold buffer events.
// onDrop, if set, is called once per dropped delivery.
func NewBus[T any](buffer int, onDrop func(), logger zerolog.Logger) *Bus[T] {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus[T]{
		subs:   make(map[*Subscription[T]]struct{}),
		buffer: buffer,
		onDrop: onDrop,
		logger: logger.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a named subscriber. On a closed bus the returned
// subscription's channel is already closed.
func (b *Bus[T]) Subscribe(name string) *Subscription[T] {
	sub := &Subscription[T]{name: name, ch: make(chan T, b.buffer), bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers evt to every subscriber with room and returns how many
// received it.
func (b *Bus[T]) Publish(evt T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}

	delivered := 0
	for sub := range b.subs {
		select {
		case sub.ch <- evt:
			delivered++
		default:
			b.logger.Warn().Str("subscriber", sub.name).Msg("subscriber queue full, dropping event")
			if b.onDrop != nil {
				b.onDrop()
			}
		}
	}
	return delivered
}

// Close closes every subscription. Later publishes are ignored.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(b.subs, sub)
	}
}

// C is the delivery channel. It is closed by Close on either side.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close unsubscribes.
func (s *Subscription[T]) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s)
	s.once.Do(func() { close(s.ch) })
}
