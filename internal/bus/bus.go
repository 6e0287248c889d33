package bus

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Bus fans domain events out to subscribers by kind prefix. Stores publish
// change notifications here for consumers outside their own subscriber
// lists. Publish never blocks: a subscriber whose buffer is full misses
// the event and the miss is counted.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	lastID  uint64
	dropped atomic.Uint64
}

type subscriber struct {
	prefix string
	ch     chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[uint64]*subscriber)}
}

// Publish delivers evt to every subscriber whose prefix matches evt.Kind.
// A nil bus discards the event, so components can run without one.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !strings.HasPrefix(evt.Kind, s.prefix) {
			continue
		}
		select {
		case s.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel receiving events whose kind starts with
// prefix, buffered to buf, and a cancel function that may be called more
// than once. The channel is never closed.
func (b *Bus) Subscribe(prefix string, buf int) (<-chan Event, func()) {
	s := &subscriber{prefix: prefix, ch: make(chan Event, max(buf, 0))}
	b.mu.Lock()
	b.lastID++
	id := b.lastID
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Dropped reports how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Bus) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}
