// Copyright 2024-2026 Aiku AI

package cache

import (
	"github.com/aiku/ts3query/pkg/event"
)

const keyInvokerID = "invokerid"

// TargetInjector attaches the client or channel a notification refers to,
// taken from the cache, before any other listener runs. Because the watchers
// run last, leave and delete notifications carry the entity as it was before
// its removal, and edits carry the state before the edit.
type TargetInjector struct {
	cache *DataCache
}

// NewTargetInjector creates an injector reading from cache.
func NewTargetInjector(cache *DataCache) *TargetInjector {
	return &TargetInjector{cache: cache}
}

// Subscriptions implements event.Listener.
func (i *TargetInjector) Subscriptions() []event.Subscription {
	return []event.Subscription{
		{Kind: event.KindAny, Priority: event.PrioritySystem, Handle: i.inject, Name: "target_injector"},
	}
}

func (i *TargetInjector) inject(evt event.Event) error {
	n, ok := evt.(*event.Notification)
	if !ok {
		return nil
	}
	switch n.Kind() {
	case event.KindClientEnter:
		// Not cached yet; the watcher adds the same shape afterwards.
		if client, err := NewClient(clientProps(n.Properties())); err == nil {
			n.SetTarget(client)
		}
	case event.KindClientLeave, event.KindClientMove:
		i.injectClient(n, KeyClientID)
	case event.KindClientMessage, event.KindChannelMessage, event.KindServerMessage:
		i.injectClient(n, keyInvokerID)
	case event.KindChannelCreate:
		if channel, err := NewChannel(channelProps(n.Properties())); err == nil {
			n.SetTarget(channel)
		}
	case event.KindChannelEdit, event.KindChannelMove, event.KindChannelDelete:
		if id, ok := n.Int(KeyChannelID); ok {
			if channel, ok := i.cache.Channel(id); ok {
				n.SetTarget(channel)
			}
		}
	}
	return nil
}

func (i *TargetInjector) injectClient(n *event.Notification, key string) {
	id, ok := n.Int(key)
	if !ok {
		return
	}
	if client, ok := i.cache.Client(id); ok {
		n.SetTarget(client)
	}
}

// ClientTarget returns the client attached to n.
func ClientTarget(n *event.Notification) (*Client, bool) {
	client, ok := n.Target().(*Client)
	return client, ok
}

// ChannelTarget returns the channel attached to n.
func ChannelTarget(n *event.Notification) (*Channel, bool) {
	channel, ok := n.Target().(*Channel)
	return channel, ok
}
