// Package eventbus fans incident events out to live observers. It is an
// in-process registry with explicit subscribe/unsubscribe; publishing never
// blocks on a slow consumer.
package eventbus

import (
	"sync"

	"github.com/jonny/guardian/internal/domain/model"
)

// Wildcard subscribes to events for every incident.
const Wildcard = "*"

const defaultBuffer = 64

// Subscription is one observer's stream. Events for a given incident
// arrive in the order they were published; when the buffer overflows the
// oldest buffered event is dropped.
type Subscription struct {
	incidentID string
	ch         chan model.Event
}

// Events returns the subscriber's receive channel. It is closed when the
// subscription is removed from the bus.
func (s *Subscription) Events() <-chan model.Event {
	return s.ch
}

// Bus owns the subscriber registry.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers an observer for one incident id, or for all
// incidents when id is Wildcard.
func (b *Bus) Subscribe(incidentID string) *Subscription {
	sub := &Subscription{
		incidentID: incidentID,
		ch:         make(chan model.Event, defaultBuffer),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the observer and closes its channel. Safe to call
// more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// Publish delivers the event to subscribers of its incident id and to
// wildcard subscribers. Delivery is best-effort: a full subscriber buffer
// sheds its oldest event to make room, so the publisher never stalls.
func (b *Bus) Publish(event model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if sub.incidentID != Wildcard && sub.incidentID != event.IncidentID {
			continue
		}
		deliver(sub.ch, event)
	}
}

func deliver(ch chan model.Event, event model.Event) {
	for {
		select {
		case ch <- event:
			return
		default:
		}
		// Buffer full: drop the oldest and retry.
		select {
		case <-ch:
		default:
		}
	}
}

// Close closes every subscription. Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// SubscriberCount reports the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
