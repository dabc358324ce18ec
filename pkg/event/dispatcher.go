// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package event

import (
	"github.com/aiku/ts3query/pkg/query"
)

// Dispatcher connects a query connection to the bus. It implements
// query.NotificationHandler and is meant to run on the connection reader.
type Dispatcher struct {
	marshaller *Marshaller
	bus        *Bus
}

// NewDispatcher creates a dispatcher firing on bus.
func NewDispatcher(marshaller *Marshaller, bus *Bus) *Dispatcher {
	return &Dispatcher{marshaller: marshaller, bus: bus}
}

// HandleNotification marshals the frame and fires every resulting
// notification in chain order.
func (d *Dispatcher) HandleNotification(frame *query.Frame) error {
	seq, err := d.marshaller.Marshal(frame)
	if err != nil {
		return err
	}
	for n := range seq {
		d.bus.Fire(n)
	}
	return nil
}

// HandleAnswer fires an AnswerEvent. It fits query.Options.OnAnswer.
func (d *Dispatcher) HandleAnswer(answer *query.Answer) {
	d.bus.Fire(AnswerEvent{Answer: answer})
}
