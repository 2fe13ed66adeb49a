package events

import (
	"sync"

	"rwavault/core/types"
)

// Event represents a structured state change emitted by the vault.
type Event interface {
	EventType() string
}

// Structured is implemented by events that can render their canonical
// type/attribute payload for indexers.
type Structured interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload extracts the structured payload of evt, or nil when it has none.
func Payload(evt Event) *types.Event {
	if s, ok := evt.(Structured); ok {
		return s.Event()
	}
	return nil
}

// Buffer holds events raised during an atomic operation until the operation
// commits. Discarded buffers never reach subscribers.
type Buffer struct {
	events []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Len returns the number of pending events.
func (b *Buffer) Len() int { return len(b.events) }

// Events returns the pending events in emission order.
func (b *Buffer) Events() []Event { return append([]Event(nil), b.events...) }

// Flush forwards pending events to dst in order and empties the buffer.
func (b *Buffer) Flush(dst Emitter) {
	pending := b.events
	b.events = nil
	if dst == nil {
		return
	}
	for _, evt := range pending {
		dst.Emit(evt)
	}
}

// Reset drops pending events.
func (b *Buffer) Reset() { b.events = nil }

// Fanout delivers every event to each emitter in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, e := range f {
		if e != nil {
			e.Emit(evt)
		}
	}
}

// Broadcaster hands events to live subscribers. Slow subscribers lose events
// rather than block the emitting operation.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewBroadcaster constructs an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber with the given channel capacity. The
// returned cancel function is idempotent.
func (b *Broadcaster) Subscribe(capacity int) (<-chan Event, func()) {
	if capacity <= 0 {
		capacity = 64
	}
	ch := make(chan Event, capacity)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports the number of live subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Emit implements the Emitter interface.
func (b *Broadcaster) Emit(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
