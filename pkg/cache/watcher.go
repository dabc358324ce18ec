// Copyright 2024-2026 Aiku AI

package cache

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aiku/ts3query/pkg/event"
	"github.com/aiku/ts3query/pkg/query"
)

// ClientWatcher applies client notifications to the cache. It subscribes at
// event.PriorityLatest so it sees every notification after other listeners.
type ClientWatcher struct {
	log   zerolog.Logger
	cache *DataCache
}

// NewClientWatcher creates a watcher for cache.
func NewClientWatcher(log zerolog.Logger, cache *DataCache) *ClientWatcher {
	return &ClientWatcher{log: log.With().Str("component", "client_watcher").Logger(), cache: cache}
}

// Subscriptions implements event.Listener.
func (w *ClientWatcher) Subscriptions() []event.Subscription {
	return []event.Subscription{
		{Kind: event.KindClientEnter, Priority: event.PriorityLatest, Handle: w.onEnter, Name: "client_watcher.enter"},
		{Kind: event.KindClientLeave, Priority: event.PriorityLatest, Handle: w.onLeave, Name: "client_watcher.leave"},
		{Kind: event.KindClientMove, Priority: event.PriorityLatest, Handle: w.onMove, Name: "client_watcher.move"},
	}
}

func (w *ClientWatcher) onEnter(evt event.Event) error {
	n, ok := evt.(*event.Notification)
	if !ok {
		return nil
	}
	client, err := NewClient(clientProps(n.Properties()))
	if err != nil {
		return fmt.Errorf("client enter: %w", err)
	}
	w.cache.updateClients(func(clients map[int]*Client) {
		clients[client.ID] = client
	})
	w.log.Debug().Int("clid", client.ID).Str("nickname", client.Nickname()).Msg("Client entered")
	return nil
}

func (w *ClientWatcher) onLeave(evt event.Event) error {
	n, ok := evt.(*event.Notification)
	if !ok {
		return nil
	}
	id, err := ParseClientID(n.Properties())
	if err != nil {
		return fmt.Errorf("client leave: %w", err)
	}
	w.cache.updateClients(func(clients map[int]*Client) {
		delete(clients, id)
	})
	w.log.Debug().Int("clid", id).Msg("Client left")
	return nil
}

func (w *ClientWatcher) onMove(evt event.Event) error {
	n, ok := evt.(*event.Notification)
	if !ok {
		return nil
	}
	id, err := ParseClientID(n.Properties())
	if err != nil {
		return fmt.Errorf("client move: %w", err)
	}
	target := n.Value(keyTargetChannel)
	var found bool
	w.cache.updateClients(func(clients map[int]*Client) {
		var client *Client
		if client, found = clients[id]; found {
			clients[id] = client.merge(query.NewProperties().With(KeyChannelID, target))
		}
	})
	if !found {
		w.log.Debug().Int("clid", id).Msg("Moved client not cached, waiting for refresh")
	}
	return nil
}

// clientProps converts enter-view properties to the clientlist shape.
func clientProps(props *query.Properties) *query.Properties {
	target := props.Value(keyTargetChannel)
	return props.Filter(func(key string) bool {
		return key != keyTargetChannel && key != keyFromChannel && key != keyReason
	}).With(KeyChannelID, target)
}

// ChannelWatcher applies channel notifications to the cache. It subscribes
// at event.PriorityLatest, so edits arrive fully merged.
type ChannelWatcher struct {
	log   zerolog.Logger
	cache *DataCache
}

// NewChannelWatcher creates a watcher for cache.
func NewChannelWatcher(log zerolog.Logger, cache *DataCache) *ChannelWatcher {
	return &ChannelWatcher{log: log.With().Str("component", "channel_watcher").Logger(), cache: cache}
}

// Subscriptions implements event.Listener.
func (w *ChannelWatcher) Subscriptions() []event.Subscription {
	return []event.Subscription{
		{Kind: event.KindChannelCreate, Priority: event.PriorityLatest, Handle: w.onCreate, Name: "channel_watcher.create"},
		{Kind: event.KindChannelEdit, Priority: event.PriorityLatest, Handle: w.onEdit, Name: "channel_watcher.edit"},
		{Kind: event.KindChannelMove, Priority: event.PriorityLatest, Handle: w.onMove, Name: "channel_watcher.move"},
		{Kind: event.KindChannelDelete, Priority: event.PriorityLatest, Handle: w.onDelete, Name: "channel_watcher.delete"},
	}
}

func (w *ChannelWatcher) onCreate(evt event.Event) error {
	n, ok := evt.(*event.Notification)
	if !ok {
		return nil
	}
	channel, err := NewChannel(channelProps(n.Properties()))
	if err != nil {
		return fmt.Errorf("channel create: %w", err)
	}
	w.cache.updateChannels(func(channels map[int]*Channel) {
		channels[channel.ID] = channel
	})
	w.log.Debug().Int("cid", channel.ID).Str("name", channel.Name()).Msg("Channel created")
	return nil
}

func (w *ChannelWatcher) onEdit(evt event.Event) error {
	n, ok := evt.(*event.Notification)
	if !ok {
		return nil
	}
	return w.mergeChannel("edit", n, n.Changes())
}

func (w *ChannelWatcher) onMove(evt event.Event) error {
	n, ok := evt.(*event.Notification)
	if !ok {
		return nil
	}
	delta := query.NewProperties().With(KeyChannelParent, n.Value(keyParentChannel))
	if order, ok := n.Properties().Get(keyOrder); ok {
		delta = delta.With(KeyChannelOrder, order)
	}
	return w.mergeChannel("move", n, delta)
}

func (w *ChannelWatcher) mergeChannel(op string, n *event.Notification, delta *query.Properties) error {
	id, err := ParseChannelID(n.Properties())
	if err != nil {
		return fmt.Errorf("channel %s: %w", op, err)
	}
	var found bool
	w.cache.updateChannels(func(channels map[int]*Channel) {
		var channel *Channel
		if channel, found = channels[id]; found {
			channels[id] = channel.merge(delta)
		}
	})
	if !found {
		w.log.Debug().Int("cid", id).Str("op", op).Msg("Channel not cached, waiting for refresh")
	}
	return nil
}

func (w *ChannelWatcher) onDelete(evt event.Event) error {
	n, ok := evt.(*event.Notification)
	if !ok {
		return nil
	}
	id, err := ParseChannelID(n.Properties())
	if err != nil {
		return fmt.Errorf("channel delete: %w", err)
	}
	w.cache.updateChannels(func(channels map[int]*Channel) {
		delete(channels, id)
	})
	w.log.Debug().Int("cid", id).Msg("Channel deleted")
	return nil
}

// channelProps converts channel-created properties to the channellist shape.
func channelProps(props *query.Properties) *query.Properties {
	parent := props.Value(keyParentChannel)
	return props.Filter(isChannelProperty).With(KeyChannelParent, parent)
}

func isChannelProperty(key string) bool {
	switch key {
	case keyParentChannel, keyReason, "invokerid", "invokername", "invokeruid":
		return false
	}
	return true
}
