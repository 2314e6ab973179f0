// Package event provides a non-blocking broadcast bus for session
// lifecycle events. Publishing never blocks: a slow or absent
// subscriber drops events instead of stalling a session.
package event

import (
	"sync"
	"time"
)

// Type identifies the kind of event.
type Type string

// Event types published by the gateway.
const (
	TypeAgentStart Type = "agent_start"
	TypeAgentEnd   Type = "agent_end"
	TypeError      Type = "error"
)

// Event is one broadcast notification.
type Event struct {
	Type      Type
	SessionID string
	Detail    string
	Time      time.Time
}

// defaultBuffer is the per-subscriber channel buffer.
const defaultBuffer = 16

// Broadcaster fans events out to all subscribers.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	buffer int
	now    func() time.Time
}

// NewBroadcaster creates a broadcaster. buffer <= 0 uses the default
// per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broadcaster{
		subs:   make(map[int]chan Event),
		buffer: buffer,
		now:    time.Now,
	}
}

// Subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes the channel; it is safe to call twice.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking.
// Events are dropped for subscribers whose buffer is full.
func (b *Broadcaster) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = b.now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
