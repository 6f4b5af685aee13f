package media

import "sync"

// Event names a media element state transition.
type Event string

const (
	EventPlay           Event = "play"
	EventPause          Event = "pause"
	EventSeeking        Event = "seeking"
	EventSeeked         Event = "seeked"
	EventTimeUpdate     Event = "timeupdate"
	EventLoadedMetadata Event = "loadedmetadata"
	EventEmptied        Event = "emptied"
	EventError          Event = "error"
)

// Handler receives an event emitted by an element.
type Handler func(Event)

type listener struct {
	id uint64
	h  Handler
}

// Bus delivers events to subscribers in subscription order.
// The zero value is ready to use.
type Bus struct {
	mu        sync.Mutex
	next      uint64
	listeners map[Event][]listener
}

// Subscribe registers h for ev. The returned Subscription must be closed
// to release the handler.
func (b *Bus) Subscribe(ev Event, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listeners == nil {
		b.listeners = make(map[Event][]listener)
	}
	b.next++
	b.listeners[ev] = append(b.listeners[ev], listener{id: b.next, h: h})
	return &Subscription{bus: b, ev: ev, id: b.next}
}

// Emit calls every handler subscribed to ev. Handlers may subscribe or
// unsubscribe while the event is being delivered; those changes apply to
// the next Emit.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	ls := make([]listener, len(b.listeners[ev]))
	copy(ls, b.listeners[ev])
	b.mu.Unlock()

	for _, l := range ls {
		if b.active(ev, l.id) {
			l.h(ev)
		}
	}
}

// Len returns the number of live subscriptions across all events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, ls := range b.listeners {
		n += len(ls)
	}
	return n
}

// active reports whether subscription id is still registered, so a handler
// closed by an earlier handler in the same Emit is skipped.
func (b *Bus) active(ev Event, id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range b.listeners[ev] {
		if l.id == id {
			return true
		}
	}
	return false
}

func (b *Bus) remove(ev Event, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ls := b.listeners[ev]
	for i, l := range ls {
		if l.id == id {
			b.listeners[ev] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(b.listeners[ev]) == 0 {
		delete(b.listeners, ev)
	}
}

// Subscription is a registered handler. Close is idempotent.
type Subscription struct {
	bus  *Bus
	ev   Event
	id   uint64
	once sync.Once
}

// Close removes the handler from its bus.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() { s.bus.remove(s.ev, s.id) })
}

// Scope groups subscriptions acquired together so they can be released
// together. The zero value is ready to use.
type Scope struct {
	mu   sync.Mutex
	subs []*Subscription
}

// Add tracks sub in the scope and returns it.
func (s *Scope) Add(sub *Subscription) *Subscription {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return sub
}

// Close releases every tracked subscription. The scope can be reused.
func (s *Scope) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
