// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mau.fi/util/exsync"
)

// Promise is the pending answer of a sent request. It is fulfilled exactly
// once by the connection reader. Promises cannot be cancelled: once a request
// is on the wire the server will answer it, and an abandoned wait simply
// leaves the fulfilled answer unread.
type Promise struct {
	request *Request
	done    *exsync.Event
	// onReader reports whether the caller runs on the connection reader.
	onReader func() bool

	mu     sync.Mutex
	answer *Answer
}

func newPromise(req *Request, onReader func() bool) *Promise {
	return &Promise{
		request:  req,
		done:     exsync.NewEvent(),
		onReader: onReader,
	}
}

// Request returns the request the promise belongs to.
func (p *Promise) Request() *Request { return p.request }

// Done reports whether the answer has arrived. It never blocks.
func (p *Promise) Done() bool { return p.done.IsSet() }

// Answer returns the answer if it has arrived, nil otherwise. It never blocks.
func (p *Promise) Answer() *Answer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.answer
}

// Cancel always fails.
func (p *Promise) Cancel() error {
	return fmt.Errorf("%w: %s", ErrNotCancellable, p.request.Command())
}

// Await waits up to timeout for the answer. A zero or negative timeout is a
// usage error and returns ErrZeroTimeout without blocking; use Answer for a
// non-blocking check.
func (p *Promise) Await(timeout time.Duration) (*Answer, error) {
	if timeout <= 0 {
		return nil, ErrZeroTimeout
	}
	if answer := p.Answer(); answer != nil {
		return answer, nil
	}
	if p.onReader != nil && p.onReader() {
		return nil, ErrAwaitOnReader
	}
	if !p.done.WaitTimeout(timeout) {
		return nil, fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, p.request.Command())
	}
	return p.Answer(), nil
}

// Wait waits for the answer until ctx is done. The context must carry a
// deadline.
func (p *Promise) Wait(ctx context.Context) (*Answer, error) {
	if _, ok := ctx.Deadline(); !ok {
		return nil, ErrUnboundedWait
	}
	if answer := p.Answer(); answer != nil {
		return answer, nil
	}
	if p.onReader != nil && p.onReader() {
		return nil, ErrAwaitOnReader
	}
	if err := p.done.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTimeout, p.request.Command(), err)
	}
	return p.Answer(), nil
}

// fulfill stores the answer. It returns false if the promise was already
// fulfilled, leaving the first answer in place.
func (p *Promise) fulfill(answer *Answer) bool {
	p.mu.Lock()
	if p.answer != nil {
		p.mu.Unlock()
		return false
	}
	p.answer = answer
	p.mu.Unlock()
	p.done.Set()
	return true
}
