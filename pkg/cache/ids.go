// Copyright 2024-2026 Aiku AI

package cache

import (
	"fmt"

	"github.com/aiku/ts3query/pkg/query"
)

// Property keys used by the cache.
const (
	KeyClientID       = "clid"
	KeyClientUID      = "client_unique_identifier"
	KeyClientNickname = "client_nickname"
	KeyClientType     = "client_type"
	KeyChannelID      = "cid"
	KeyChannelParent  = "pid"
	KeyChannelName    = "channel_name"
	KeyChannelOrder   = "channel_order"

	keyTargetChannel = "ctid"
	keyFromChannel   = "cfid"
	keyParentChannel = "cpid"
	keyOrder         = "order"
	keyReason        = "reasonid"
)

// ParseClientID extracts the client id from a property set.
func ParseClientID(props *query.Properties) (int, error) {
	return parseID(props, KeyClientID)
}

// ParseChannelID extracts the channel id from a property set.
func ParseChannelID(props *query.Properties) (int, error) {
	return parseID(props, KeyChannelID)
}

func parseID(props *query.Properties, key string) (int, error) {
	id, ok := props.Int(key)
	if !ok {
		return 0, fmt.Errorf("missing or invalid %s %q", key, props.Value(key))
	}
	return id, nil
}
