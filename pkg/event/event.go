// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package event

import (
	"github.com/aiku/ts3query/pkg/query"
)

// Event is anything delivered on the bus.
type Event interface {
	Kind() Kind
}

// Notification is a typed server notification. It carries the merged
// properties of every frame that contributed to it and is frozen once built.
// The only later addition is the target, attached once at PrioritySystem.
type Notification struct {
	kind    Kind
	caption string
	props   *query.Properties
	changes *query.Properties
	target  any
}

// NewNotification builds a notification. It is exported for tests and
// synthetic events; the marshaller is the regular source.
func NewNotification(kind Kind, caption string, props *query.Properties) *Notification {
	return &Notification{kind: kind, caption: caption, props: props.Clone()}
}

// Kind implements Event.
func (n *Notification) Kind() Kind { return n.kind }

// Caption returns the caption of the frame the notification was built from.
func (n *Notification) Caption() string { return n.caption }

// Properties returns the merged properties.
func (n *Notification) Properties() *query.Properties { return n.props.Clone() }

// Value returns a single property value.
func (n *Notification) Value(key string) string { return n.props.Value(key) }

// Int returns a single property parsed as integer.
func (n *Notification) Int(key string) (int, bool) { return n.props.Int(key) }

// Changes returns the changed channel properties of a KindChannelEdit
// notification, i.e. everything except the channel id and invoker fields.
func (n *Notification) Changes() *query.Properties {
	if n.changes == nil {
		return query.NewProperties()
	}
	return n.changes.Clone()
}

// Target returns the entity the notification refers to, or nil.
func (n *Notification) Target() any { return n.target }

// SetTarget attaches the entity the notification refers to. Only the first
// non-nil target is kept. Listeners at PrioritySystem set it so that every
// later listener sees it.
func (n *Notification) SetTarget(target any) bool {
	if target == nil || n.target != nil {
		return false
	}
	n.target = target
	return true
}

// AnswerEvent is fired for every answered request.
type AnswerEvent struct {
	Answer *query.Answer
}

// Kind implements Event.
func (AnswerEvent) Kind() Kind { return KindAnswer }

// StateEvent reports connection lifecycle changes. Err is set on
// KindDisconnected when the connection failed.
type StateEvent struct {
	State Kind
	Err   error
}

// Kind implements Event.
func (e StateEvent) Kind() Kind { return e.State }
