// Copyright 2024-2026 Aiku AI

// Package relay republishes dispatched notifications to a NATS subject tree
// so processes without a query connection can follow server events.
package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/ts3query/pkg/event"
)

// Publisher sends one message. *NATSPublisher implements it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the JSON payload of a relayed notification.
type Message struct {
	Kind       string            `json:"kind"`
	Caption    string            `json:"caption"`
	Properties map[string]string `json:"properties"`
	Changes    map[string]string `json:"changes,omitempty"`
	Time       time.Time         `json:"time"`
}

// Relay is an event listener publishing every notification to
// "<prefix>.<kind>".
type Relay struct {
	log    zerolog.Logger
	pub    Publisher
	prefix string
	now    func() time.Time
}

// New creates a relay publishing below prefix.
func New(log zerolog.Logger, pub Publisher, prefix string) *Relay {
	return &Relay{
		log:    log.With().Str("component", "relay").Logger(),
		pub:    pub,
		prefix: prefix,
		now:    time.Now,
	}
}

// Subscriptions implements event.Listener. The relay runs at
// event.PriorityLate, after regular listeners and before the cache watchers.
func (r *Relay) Subscriptions() []event.Subscription {
	return []event.Subscription{
		{Kind: event.KindAny, Priority: event.PriorityLate, Handle: r.handle, Name: "relay"},
	}
}

// Subject returns the subject notifications of kind are published to.
func (r *Relay) Subject(kind event.Kind) string {
	return r.prefix + "." + kind.String()
}

func (r *Relay) handle(evt event.Event) error {
	n, ok := evt.(*event.Notification)
	if !ok {
		return nil
	}
	msg := Message{
		Kind:       n.Kind().String(),
		Caption:    n.Caption(),
		Properties: n.Properties().Map(),
		Time:       r.now(),
	}
	if n.Kind() == event.KindChannelEdit {
		msg.Changes = n.Changes().Map()
	}
	data, err := json.Marshal(&msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Kind, err)
	}
	subject := r.Subject(n.Kind())
	if err = r.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	r.log.Trace().Str("subject", subject).Msg("Relayed notification")
	return nil
}
