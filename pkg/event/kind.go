// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package event

// Kind discriminates events on the bus.
type Kind int

const (
	// KindAny matches every event when used in a Subscription.
	KindAny Kind = iota

	KindClientEnter
	KindClientLeave
	KindClientMove
	KindChannelCreate
	KindChannelEdit
	KindChannelMove
	KindChannelDelete
	KindClientMessage
	KindChannelMessage
	KindServerMessage
	KindServerEdit
	KindTokenUsed

	KindAnswer
	KindRefreshClients
	KindRefreshChannels
	KindConnected
	KindDisconnected
)

var kindNames = map[Kind]string{
	KindAny:             "any",
	KindClientEnter:     "client_enter",
	KindClientLeave:     "client_leave",
	KindClientMove:      "client_move",
	KindChannelCreate:   "channel_create",
	KindChannelEdit:     "channel_edit",
	KindChannelMove:     "channel_move",
	KindChannelDelete:   "channel_delete",
	KindClientMessage:   "client_message",
	KindChannelMessage:  "channel_message",
	KindServerMessage:   "server_message",
	KindServerEdit:      "server_edit",
	KindTokenUsed:       "token_used",
	KindAnswer:          "answer",
	KindRefreshClients:  "refresh_clients",
	KindRefreshChannels: "refresh_channels",
	KindConnected:       "connected",
	KindDisconnected:    "disconnected",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Notification captions sent by the server.
const (
	CaptionClientEnter        = "notifycliententerview"
	CaptionClientLeft         = "notifyclientleftview"
	CaptionClientMoved        = "notifyclientmoved"
	CaptionChannelCreated     = "notifychannelcreated"
	CaptionChannelEdited      = "notifychanneledited"
	CaptionChannelDescription = "notifychanneldescriptionchanged"
	CaptionChannelPassword    = "notifychannelpasswordchanged"
	CaptionChannelMoved       = "notifychannelmoved"
	CaptionChannelDeleted     = "notifychanneldeleted"
	CaptionTextMessage        = "notifytextmessage"
	CaptionServerEdited       = "notifyserveredited"
	CaptionTokenUsed          = "notifytokenused"
)

type captionRole int

const (
	roleSimple captionRole = iota
	roleEditBase
	roleEditAddendum
	roleTextMessage
)

type captionInfo struct {
	kind  Kind
	role  captionRole
	dedup bool
}

// captions maps every known caption to its kind. Text messages are
// demultiplexed by target mode.
var captions = map[string]captionInfo{
	CaptionClientEnter:        {kind: KindClientEnter, dedup: true},
	CaptionClientLeft:         {kind: KindClientLeave, dedup: true},
	CaptionClientMoved:        {kind: KindClientMove, dedup: true},
	CaptionChannelCreated:     {kind: KindChannelCreate, dedup: true},
	CaptionChannelEdited:      {kind: KindChannelEdit, role: roleEditBase, dedup: true},
	CaptionChannelDescription: {kind: KindChannelEdit, role: roleEditAddendum},
	CaptionChannelPassword:    {kind: KindChannelEdit, role: roleEditAddendum},
	CaptionChannelMoved:       {kind: KindChannelMove},
	CaptionChannelDeleted:     {kind: KindChannelDelete, dedup: true},
	CaptionTextMessage:        {role: roleTextMessage},
	CaptionServerEdited:       {kind: KindServerEdit},
	CaptionTokenUsed:          {kind: KindTokenUsed},
}

// Text message target modes.
const (
	TargetModeClient  = 1
	TargetModeChannel = 2
	TargetModeServer  = 3
)

var targetModes = map[int]Kind{
	TargetModeClient:  KindClientMessage,
	TargetModeChannel: KindChannelMessage,
	TargetModeServer:  KindServerMessage,
}

// RegisterEvents lists the servernotifyregister event names that produce the
// captions above.
var RegisterEvents = []string{"server", "channel", "textserver", "textchannel", "textprivate", "tokenused"}

// standardEditKeys are present on every channel edit and carry no change.
var standardEditKeys = map[string]struct{}{
	"cid":         {},
	"invokerid":   {},
	"invokername": {},
	"invokeruid":  {},
	"reasonid":    {},
}
