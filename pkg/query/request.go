// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package query

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aiku/ts3query/pkg/query/queryfmt"
)

// Request is a command to send to the server. Requests are built with the
// chaining methods and must not be modified once sent.
//
//	req := query.NewRequest("clientmove").
//		Set("cid", 5).
//		Set("clid", 12).
//		NewChain().
//		Set("clid", 13)
type Request struct {
	command string
	chain   []*Properties
	options []string
	onDone  func(*Answer)
}

// NewRequest creates a request for the given command verb.
func NewRequest(command string) *Request {
	return &Request{
		command: command,
		chain:   []*Properties{NewProperties()},
	}
}

// Set adds a parameter to the current parameter group. Booleans are sent as
// 1/0, other values via their string form.
func (r *Request) Set(key string, value any) *Request {
	r.chain[len(r.chain)-1].set(key, formatValue(value))
	return r
}

// NewChain starts a new parameter group. Groups are pipe-delimited on the wire
// and address repeated entities of one command.
func (r *Request) NewChain() *Request {
	r.chain = append(r.chain, NewProperties())
	return r
}

// Option adds a flag option such as "uid". The leading dash is optional.
func (r *Request) Option(name string) *Request {
	r.options = append(r.options, strings.TrimPrefix(name, "-"))
	return r
}

// OnDone registers a callback run on the connection reader once the answer
// arrives. The callback must not block or await other promises.
func (r *Request) OnDone(fn func(*Answer)) *Request {
	r.onDone = fn
	return r
}

// Finish runs the OnDone callback with answer, if one is registered. The
// connection calls it on the reader right after fulfilling the promise;
// in-memory requesters call it to take the connection's place.
func (r *Request) Finish(answer *Answer) {
	if r.onDone != nil {
		r.onDone(answer)
	}
}

// Command returns the command verb.
func (r *Request) Command() string { return r.command }

// Chain returns the parameter groups.
func (r *Request) Chain() []*Properties { return slices.Clone(r.chain) }

// Options returns the flag options without leading dashes.
func (r *Request) Options() []string { return slices.Clone(r.options) }

// Encode returns the request in wire form, without line terminator.
func (r *Request) Encode() string {
	return r.encode(false)
}

// String returns the wire form with password values masked, for logging.
func (r *Request) String() string {
	return r.encode(true)
}

func (r *Request) encode(mask bool) string {
	var b strings.Builder
	b.WriteString(r.command)
	first := true
	for _, group := range r.chain {
		if group.Len() == 0 {
			continue
		}
		if first {
			b.WriteString(propertySeparator)
			first = false
		} else {
			b.WriteString(chainSeparator)
		}
		for i, key := range group.keys {
			if i > 0 {
				b.WriteString(propertySeparator)
			}
			b.WriteString(key)
			b.WriteByte('=')
			if mask && strings.Contains(key, "password") {
				b.WriteString("***")
				continue
			}
			b.WriteString(queryfmt.Escape(group.values[key]))
		}
	}
	for _, opt := range r.options {
		b.WriteString(" -")
		b.WriteString(opt)
	}
	return b.String()
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
