// Package events provides an in-process pub/sub bus for diagnostic
// events, letting observers (watch streams, the HTTP API) follow a
// session's state operations without touching the journal file.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/powersteer/steerstate/internal/core"
)

// Subscriber represents an event subscription.
type Subscriber struct {
	ch    chan core.DiagnosticEvent
	types map[core.EventType]bool // Empty means all types
}

// Bus provides pub/sub with backpressure control. Publishing never blocks:
// a full subscriber buffer drops the oldest event, which keeps the bus
// fail-open from the state store's point of view.
type Bus struct {
	mu           sync.RWMutex
	subscribers  []*Subscriber
	bufferSize   int
	droppedCount int64
	closed       bool
}

// New creates a new Bus with the specified buffer size per subscriber.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subscribers: make([]*Subscriber, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription for specific event types.
// If no types are specified, subscribes to all events.
func (b *Bus) Subscribe(types ...core.EventType) <-chan core.DiagnosticEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ch:    make(chan core.DiagnosticEvent, b.bufferSize),
		types: make(map[core.EventType]bool),
	}
	for _, t := range types {
		sub.types[t] = true
	}
	b.subscribers = append(b.subscribers, sub)
	return sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(ch <-chan core.DiagnosticEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]*Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if sub.ch != ch {
			result = append(result, sub)
		} else {
			close(sub.ch)
		}
	}
	b.subscribers = result
}

// Publish delivers an event to matching subscribers with ring-buffer
// semantics on full channels.
func (b *Bus) Publish(event core.DiagnosticEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		if len(sub.types) != 0 && !sub.types[event.Type] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Buffer full, drop oldest and try again
			select {
			case <-sub.ch:
				atomic.AddInt64(&b.droppedCount, 1)
			default:
			}
			select {
			case sub.ch <- event:
			default:
				atomic.AddInt64(&b.droppedCount, 1)
			}
		}
	}
}

// Record implements core.EventSink, letting the bus sit directly behind
// the state store.
func (b *Bus) Record(event core.DiagnosticEvent) {
	b.Publish(event)
}

// DroppedCount returns the number of events dropped due to backpressure.
func (b *Bus) DroppedCount() int64 {
	return atomic.LoadInt64(&b.droppedCount)
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = nil
}

var _ core.EventSink = (*Bus)(nil)
