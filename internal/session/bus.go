// Package session is the per-player match session state machine that runs on
// the client side of the transport. It mirrors the round engine's
// authoritative state from pushed events and rebuilds itself from the session
// status query after a reconnect.
package session

import (
	"sync"

	"rps_arena/internal/protocol"
)

// Handler receives one decoded event.
type Handler func(env protocol.Envelope)

// Bus fans received events out to handlers registered per event type. There
// is one bus per connection; handlers run synchronously on the publisher's
// goroutine, so events of a connection are seen in arrival order.
type Bus struct {
	mu   sync.RWMutex
	next uint64
	subs map[string][]entry
}

type entry struct {
	id uint64
	h  Handler
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	bus  *Bus
	typ  string
	id   uint64
	once sync.Once
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]entry)}
}

// Subscribe registers h for events of type typ.
func (b *Bus) Subscribe(typ string, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.subs[typ] = append(b.subs[typ], entry{id: b.next, h: h})
	return &Subscription{bus: b, typ: typ, id: b.next}
}

// Unsubscribe removes the handler. Calling it again is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.typ, s.id)
	})
}

func (b *Bus) remove(typ string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[typ]
	for i, e := range list {
		if e.id == id {
			b.subs[typ] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[typ]) == 0 {
		delete(b.subs, typ)
	}
}

// Publish delivers env to every handler of its type in subscription order.
func (b *Bus) Publish(env protocol.Envelope) {
	b.mu.RLock()
	list := append([]entry(nil), b.subs[env.Type]...)
	b.mu.RUnlock()

	for _, e := range list {
		e.h(env)
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, list := range b.subs {
		n += len(list)
	}
	return n
}
