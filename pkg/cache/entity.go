// Copyright 2024-2026 Aiku AI

package cache

import (
	"github.com/aiku/ts3query/pkg/query"
)

// Client is a connected client. Clients are immutable; updates replace the
// cached value.
type Client struct {
	ID    int
	props *query.Properties
}

// NewClient creates a client from a property set holding at least clid.
func NewClient(props *query.Properties) (*Client, error) {
	id, err := ParseClientID(props)
	if err != nil {
		return nil, err
	}
	return &Client{ID: id, props: props.Clone()}, nil
}

// Properties returns a copy of the client's properties.
func (c *Client) Properties() *query.Properties { return c.props.Clone() }

// Value returns a single property.
func (c *Client) Value(key string) string { return c.props.Value(key) }

// Nickname returns the client's display name.
func (c *Client) Nickname() string { return c.props.Value(KeyClientNickname) }

// UniqueID returns the client's identity, if known.
func (c *Client) UniqueID() string { return c.props.Value(KeyClientUID) }

// ChannelID returns the channel the client is in.
func (c *Client) ChannelID() int {
	id, _ := c.props.Int(KeyChannelID)
	return id
}

// IsQuery reports whether the client is a query client rather than a voice
// client.
func (c *Client) IsQuery() bool { return c.props.Value(KeyClientType) == "1" }

func (c *Client) merge(props *query.Properties) *Client {
	return &Client{ID: c.ID, props: c.props.Merge(props)}
}

// Channel is a server channel. Channels are immutable; updates replace the
// cached value.
type Channel struct {
	ID    int
	props *query.Properties
}

// NewChannel creates a channel from a property set holding at least cid.
func NewChannel(props *query.Properties) (*Channel, error) {
	id, err := ParseChannelID(props)
	if err != nil {
		return nil, err
	}
	return &Channel{ID: id, props: props.Clone()}, nil
}

// Properties returns a copy of the channel's properties.
func (c *Channel) Properties() *query.Properties { return c.props.Clone() }

// Value returns a single property.
func (c *Channel) Value(key string) string { return c.props.Value(key) }

// Name returns the channel name.
func (c *Channel) Name() string { return c.props.Value(KeyChannelName) }

// ParentID returns the parent channel id, 0 for top-level channels.
func (c *Channel) ParentID() int {
	id, _ := c.props.Int(KeyChannelParent)
	return id
}

func (c *Channel) merge(props *query.Properties) *Channel {
	return &Channel{ID: c.ID, props: c.props.Merge(props)}
}
