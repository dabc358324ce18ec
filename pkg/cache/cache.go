// Copyright 2024-2026 Aiku AI

package cache

import (
	"cmp"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// DataCache replicates the server's clients and channels. All mutation
// happens under one lock, either wholesale by the Refresher or as a delta by
// a watcher; readers get snapshots.
type DataCache struct {
	log zerolog.Logger

	mu       sync.RWMutex
	clients  map[int]*Client
	channels map[int]*Channel
}

// New creates an empty cache.
func New(log zerolog.Logger) *DataCache {
	return &DataCache{
		log:      log.With().Str("component", "cache").Logger(),
		clients:  make(map[int]*Client),
		channels: make(map[int]*Channel),
	}
}

// Clients returns a snapshot of the clients by id.
func (c *DataCache) Clients() map[int]*Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.clients)
}

// Channels returns a snapshot of the channels by id.
func (c *DataCache) Channels() map[int]*Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.channels)
}

// Client returns one client.
func (c *DataCache) Client(id int) (*Client, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	client, ok := c.clients[id]
	return client, ok
}

// Channel returns one channel.
func (c *DataCache) Channel(id int) (*Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channel, ok := c.channels[id]
	return channel, ok
}

// ClientList returns the clients sorted by id.
func (c *DataCache) ClientList() []*Client {
	return sortedByID(c.Clients(), func(cl *Client) int { return cl.ID })
}

// ChannelList returns the channels sorted by id.
func (c *DataCache) ChannelList() []*Channel {
	return sortedByID(c.Channels(), func(ch *Channel) int { return ch.ID })
}

// FindClientByUniqueID returns the clients connected with the given
// identity, sorted by id. One identity may be connected several times.
func (c *DataCache) FindClientByUniqueID(uid string) []*Client {
	var out []*Client
	for _, client := range c.ClientList() {
		if client.UniqueID() == uid {
			out = append(out, client)
		}
	}
	return out
}

// FindChannelByName returns the channels whose name contains name, ignoring
// case, sorted by id.
func (c *DataCache) FindChannelByName(name string) []*Channel {
	needle := strings.ToLower(name)
	var out []*Channel
	for _, channel := range c.ChannelList() {
		if strings.Contains(strings.ToLower(channel.Name()), needle) {
			out = append(out, channel)
		}
	}
	return out
}

// ReplaceClients swaps the client map wholesale.
func (c *DataCache) ReplaceClients(clients []*Client) {
	next := make(map[int]*Client, len(clients))
	for _, client := range clients {
		next[client.ID] = client
	}
	c.mu.Lock()
	c.clients = next
	c.mu.Unlock()
}

// ReplaceChannels swaps the channel map wholesale.
func (c *DataCache) ReplaceChannels(channels []*Channel) {
	next := make(map[int]*Channel, len(channels))
	for _, channel := range channels {
		next[channel.ID] = channel
	}
	c.mu.Lock()
	c.channels = next
	c.mu.Unlock()
}

// updateClients runs fn with the client map under the write lock.
func (c *DataCache) updateClients(fn func(clients map[int]*Client)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.clients)
}

// updateChannels runs fn with the channel map under the write lock.
func (c *DataCache) updateChannels(fn func(channels map[int]*Channel)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.channels)
}

func sortedByID[T any](m map[int]T, id func(T) int) []T {
	return slices.SortedFunc(maps.Values(m), func(a, b T) int {
		return cmp.Compare(id(a), id(b))
	})
}
