// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package event

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Priority orders delivery. Lower values are delivered first.
type Priority int

const (
	PrioritySystem Priority = iota
	PriorityEarly
	PriorityNormal
	PriorityLate
	// PriorityLatest observes an event after every other listener.
	PriorityLatest
)

// Handler handles one event. A returned error or panic is logged and does
// not affect other handlers.
type Handler func(Event) error

// Subscription binds a handler to a kind at a priority. Name identifies the
// handler in failure logs; without it the listener's type and address are
// logged.
type Subscription struct {
	Kind     Kind
	Priority Priority
	Handle   Handler
	Name     string
}

// Listener is registered on a Bus. Listener identity is decided with ==, so
// implementations should be pointers.
type Listener interface {
	Subscriptions() []Subscription
}

type registration struct {
	listener Listener
	sub      Subscription
}

// Bus delivers events to listeners in priority order. Each Fire call
// iterates the snapshot current at its start, so listeners may register,
// unregister or fire further events from inside a handler.
type Bus struct {
	log zerolog.Logger

	mu        sync.Mutex
	listeners []Listener
	snapshot  atomic.Pointer[[]registration]
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	b := &Bus{log: log.With().Str("component", "event_bus").Logger()}
	b.snapshot.Store(&[]registration{})
	return b
}

// Register adds a listener. Registering the same listener twice is a no-op
// and returns false.
func (b *Bus) Register(l Listener) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if slices.Contains(b.listeners, l) {
		return false
	}
	b.listeners = append(b.listeners, l)
	b.rebuild()
	return true
}

// Unregister removes a listener. It returns false if it was not registered.
func (b *Bus) Unregister(l Listener) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := slices.Index(b.listeners, l)
	if idx < 0 {
		return false
	}
	b.listeners = slices.Delete(b.listeners, idx, idx+1)
	b.rebuild()
	return true
}

// On registers a single handler and returns the listener to unregister it.
func (b *Bus) On(kind Kind, prio Priority, fn Handler) Listener {
	l := &funcListener{sub: Subscription{Kind: kind, Priority: prio, Handle: fn}}
	b.Register(l)
	return l
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

func (b *Bus) rebuild() {
	var regs []registration
	for _, l := range b.listeners {
		for _, sub := range l.Subscriptions() {
			if sub.Handle == nil {
				continue
			}
			regs = append(regs, registration{listener: l, sub: sub})
		}
	}
	slices.SortStableFunc(regs, func(a, b registration) int {
		return int(a.sub.Priority) - int(b.sub.Priority)
	})
	b.snapshot.Store(&regs)
}

// Fire delivers evt to every matching subscription.
func (b *Bus) Fire(evt Event) {
	kind := evt.Kind()
	for _, reg := range *b.snapshot.Load() {
		if reg.sub.Kind != KindAny && reg.sub.Kind != kind {
			continue
		}
		if err := b.deliver(reg.sub.Handle, evt); err != nil {
			b.log.Err(err).
				Str("listener", reg.identity()).
				Stringer("kind", kind).
				Int("priority", int(reg.sub.Priority)).
				Msg("Event listener failed")
		}
	}
}

func (r registration) identity() string {
	if r.sub.Name != "" {
		return r.sub.Name
	}
	return fmt.Sprintf("%T@%p", r.listener, r.listener)
}

func (b *Bus) deliver(fn Handler, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return fn(evt)
}

type funcListener struct {
	sub Subscription
}

func (l *funcListener) Subscriptions() []Subscription {
	return []Subscription{l.sub}
}
