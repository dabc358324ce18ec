// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package event

import (
	"fmt"
	"iter"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/aiku/ts3query/pkg/query"
)

// pendingEdit is the most recent channel edit base, kept so addenda can be
// merged into it.
type pendingEdit struct {
	props      *query.Properties
	changes    *query.Properties
	dispatched bool
}

// Marshaller turns notification frames into typed notifications. It keeps
// the dedup hash and the pending channel edit between calls and must only be
// used from the connection reader.
type Marshaller struct {
	log zerolog.Logger

	lastHash uint64
	hasHash  bool
	edit     *pendingEdit
}

// NewMarshaller creates a marshaller with empty state.
func NewMarshaller(log zerolog.Logger) *Marshaller {
	return &Marshaller{log: log.With().Str("component", "marshaller").Logger()}
}

// Marshal classifies a notification frame. The returned sequence yields one
// notification per chain link and can only be iterated once. Unknown
// captions, repeats and suspended edits yield an empty sequence.
//
// An unrecognized text message target mode returns an error matching
// query.ErrProtocolConsistency. An addendum without a pending edit returns an
// error matching query.ErrResumeWithoutBase.
func (m *Marshaller) Marshal(frame *query.Frame) (iter.Seq[*Notification], error) {
	caption := frame.Caption()
	info, ok := captions[caption]
	if !ok {
		m.log.Warn().Str("caption", caption).Msg("Unknown notification caption")
		return empty, nil
	}

	hash := frame.Hash()
	if info.dedup && m.hasHash && hash == m.lastHash {
		m.log.Debug().Str("caption", caption).Msg("Dropping duplicate notification")
		return empty, nil
	}

	var seq iter.Seq[*Notification]
	switch info.role {
	case roleEditBase:
		n := m.suspendEdit(frame)
		if n == nil {
			return empty, nil
		}
		seq = single(n)
	case roleEditAddendum:
		n, err := m.resumeEdit(frame)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return empty, nil
		}
		seq = single(n)
	case roleTextMessage:
		kind, err := textMessageKind(frame)
		if err != nil {
			return nil, err
		}
		seq = expandChain(kind, frame)
	default:
		seq = expandChain(info.kind, frame)
	}

	m.lastHash = hash
	m.hasHash = true
	return oneShot(seq), nil
}

// suspendEdit records a channel edit base. The base is returned for dispatch
// only if it carries changed properties; otherwise the addendum completes it.
func (m *Marshaller) suspendEdit(frame *query.Frame) *Notification {
	props := frame.Properties()
	changes := props.Filter(func(key string) bool {
		_, std := standardEditKeys[key]
		return !std
	})
	m.edit = &pendingEdit{props: props, changes: changes, dispatched: changes.Len() > 0}
	if !m.edit.dispatched {
		m.log.Debug().Str("cid", props.Value("cid")).Msg("Suspending channel edit without changes")
		return nil
	}
	return &Notification{kind: KindChannelEdit, caption: frame.Caption(), props: props, changes: changes}
}

// resumeEdit merges an addendum into the pending edit. It returns the merged
// edit if the base was suspended, nil if the base was already dispatched.
func (m *Marshaller) resumeEdit(frame *query.Frame) (*Notification, error) {
	props := frame.Properties()
	if m.edit == nil || m.edit.props.Value("cid") != props.Value("cid") {
		return nil, fmt.Errorf("%w: %s for channel %s", query.ErrResumeWithoutBase, frame.Caption(), props.Value("cid"))
	}
	edit := &pendingEdit{
		props:   m.edit.props.Merge(props),
		changes: m.edit.changes.Merge(props.Filter(func(key string) bool { return key != "cid" })),
	}
	if m.edit.dispatched {
		edit.dispatched = true
		m.edit = edit
		m.log.Debug().Str("cid", props.Value("cid")).Str("caption", frame.Caption()).
			Msg("Merged addendum into dispatched channel edit")
		return nil, nil
	}
	edit.dispatched = true
	m.edit = edit
	return &Notification{kind: KindChannelEdit, caption: CaptionChannelEdited, props: edit.props, changes: edit.changes}, nil
}

// PendingEdit returns the merged properties of the last channel edit, or nil.
func (m *Marshaller) PendingEdit() *query.Properties {
	if m.edit == nil {
		return nil
	}
	return m.edit.props.Clone()
}

func textMessageKind(frame *query.Frame) (Kind, error) {
	raw, ok := frame.Properties().Get("targetmode")
	if !ok {
		return 0, query.NewConsistencyError("text message without target mode", frame.Raw())
	}
	mode, err := strconv.Atoi(raw)
	if err != nil {
		return 0, query.NewConsistencyError("text message with invalid target mode", frame.Raw())
	}
	kind, ok := targetModes[mode]
	if !ok {
		return 0, query.NewConsistencyError(fmt.Sprintf("unknown text message target mode %d", mode), frame.Raw())
	}
	return kind, nil
}

// expandChain yields one notification per link. Links after the first only
// carry the fields that differ, so each notification accumulates the
// properties of all links up to its own.
func expandChain(kind Kind, frame *query.Frame) iter.Seq[*Notification] {
	return func(yield func(*Notification) bool) {
		acc := query.NewProperties()
		for _, link := range frame.Links() {
			acc = acc.Merge(link)
			if !yield(&Notification{kind: kind, caption: frame.Caption(), props: acc}) {
				return
			}
		}
	}
}

func empty(func(*Notification) bool) {}

func single(n *Notification) iter.Seq[*Notification] {
	return func(yield func(*Notification) bool) { yield(n) }
}

// oneShot makes seq yield nothing after its first iteration.
func oneShot(seq iter.Seq[*Notification]) iter.Seq[*Notification] {
	var used atomic.Bool
	return func(yield func(*Notification) bool) {
		if used.Swap(true) {
			return
		}
		seq(yield)
	}
}
