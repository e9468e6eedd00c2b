// Package eventbus routes pipeline progress events to in-process
// subscribers. The sequencer publishes one event per finished stage; the
// CLI subscribes to drive operator progress output without coupling the
// engine to any presentation.
package eventbus

import (
	"sync"
	"time"
)

// Event reports one finished stage of one business date.
type Event struct {
	Stage     string
	Date      string
	Timestamp time.Time
	Success   bool
	Processed int
	Error     string
}

// Bus is an in-process event bus that routes events to subscribers by
// stage name. It uses Go channels for delivery and is safe for concurrent
// use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan<- Event
	closed      bool
	done        chan struct{}
}

// New creates a new Bus ready for use.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan<- Event),
		done:        make(chan struct{}),
	}
}

// Subscribe registers a channel to receive events for the given stage.
// The caller is responsible for creating the channel with sufficient
// buffer capacity; slow subscribers will have events dropped.
func (b *Bus) Subscribe(stage string, ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[stage] = append(b.subscribers[stage], ch)
}

// Publish sends an event to all subscribers registered for its stage.
// If a subscriber's channel is full, the event is dropped for that
// subscriber. Publish is a no-op after Close has been called.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subscribers[evt.Stage] {
		select {
		case ch <- evt:
		default:
			// drop if subscriber is slow
		}
	}
}

// Close marks the bus as closed. After Close, Publish is a no-op.
// Close does not close subscriber channels; that is the caller's
// responsibility.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
}

// Done is closed once the bus is. Consumers select on it to stop draining.
func (b *Bus) Done() <-chan struct{} { return b.done }
