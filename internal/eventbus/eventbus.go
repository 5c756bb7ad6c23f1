// Package eventbus provides the fan-out pub/sub channel the scheduling core
// uses to surface events to the presentation layer.
package eventbus

import "sync"

// Event is an arbitrary event passed on the bus; concrete types live in
// core/events.
type Event interface{}

// EventBus decouples event producers from the presentation layer.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

const subscriberBuffer = 16

// Bus is the default EventBus implementation. Delivery is non-blocking: a
// subscriber that falls behind loses events rather than stalling a pass.
type Bus struct {
	mu     sync.RWMutex
	subs   map[<-chan Event]chan Event
	closed bool
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[<-chan Event]chan Event)}
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its receive channel.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = ch
	return ch
}

// Unsubscribe removes the subscriber and closes its channel. Unsubscribing
// after Close is a no-op.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[sub]
	if !ok {
		return
	}
	delete(b.subs, sub)
	if !b.closed {
		close(ch)
	}
}

// Close closes every subscriber channel and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = map[<-chan Event]chan Event{}
}
