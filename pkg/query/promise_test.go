// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package query

import (
	"context"
	"errors"
	"testing"
	"time"
)

func okAnswer(req *Request) *Answer {
	return NewAnswer(req, nil, QueryError{ID: ErrIDOK, Message: "ok"})
}

func TestAwaitZeroTimeoutDoesNotBlock(t *testing.T) {
	t.Parallel()
	p := newPromise(NewRequest("whoami"), nil)
	start := time.Now()
	answer, err := p.Await(0)
	if !errors.Is(err, ErrZeroTimeout) {
		t.Errorf("Await(0): got %v, want ErrZeroTimeout", err)
	}
	if answer != nil {
		t.Error("Await(0) returned an answer that does not exist")
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Await(0) blocked for %s", elapsed)
	}
}

func TestAwaitTimeout(t *testing.T) {
	t.Parallel()
	p := newPromise(NewRequest("whoami"), nil)
	answer, err := p.Await(20 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Await: got %v, want ErrTimeout", err)
	}
	if answer != nil {
		t.Error("timed out Await returned an answer")
	}
	if p.Done() {
		t.Error("promise should not be done")
	}
}

func TestAwaitReturnsAnswerBeforeDeadline(t *testing.T) {
	t.Parallel()
	req := NewRequest("whoami")
	p := newPromise(req, nil)
	go func() {
		time.Sleep(10 * time.Millisecond)
		p.fulfill(okAnswer(req))
	}()
	answer, err := p.Await(2 * time.Second)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if answer == nil || answer.Request() != req {
		t.Fatalf("Await: got %v, want answer for request", answer)
	}
	if !p.Done() {
		t.Error("promise should be done")
	}
}

func TestAwaitAfterTimeoutStillFulfilled(t *testing.T) {
	t.Parallel()
	req := NewRequest("whoami")
	p := newPromise(req, nil)
	if _, err := p.Await(5 * time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Await: got %v, want ErrTimeout", err)
	}
	p.fulfill(okAnswer(req))
	if p.Answer() == nil {
		t.Error("late answer should still be stored")
	}
}

func TestFulfillExactlyOnce(t *testing.T) {
	t.Parallel()
	req := NewRequest("whoami")
	p := newPromise(req, nil)
	first := okAnswer(req)
	if !p.fulfill(first) {
		t.Fatal("first fulfill should succeed")
	}
	if p.fulfill(okAnswer(req)) {
		t.Error("second fulfill should be rejected")
	}
	if p.Answer() != first {
		t.Error("first answer should be kept")
	}
}

func TestWaitRequiresDeadline(t *testing.T) {
	t.Parallel()
	p := newPromise(NewRequest("whoami"), nil)
	if _, err := p.Wait(context.Background()); !errors.Is(err, ErrUnboundedWait) {
		t.Errorf("Wait: got %v, want ErrUnboundedWait", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Wait(ctx); !errors.Is(err, ErrTimeout) {
		t.Errorf("Wait: got %v, want ErrTimeout", err)
	}
}

func TestCancelFails(t *testing.T) {
	t.Parallel()
	p := newPromise(NewRequest("whoami"), nil)
	if err := p.Cancel(); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("Cancel: got %v, want ErrNotCancellable", err)
	}
}

func TestAwaitOnReaderFails(t *testing.T) {
	t.Parallel()
	p := newPromise(NewRequest("whoami"), func() bool { return true })
	if _, err := p.Await(time.Second); !errors.Is(err, ErrAwaitOnReader) {
		t.Errorf("Await: got %v, want ErrAwaitOnReader", err)
	}
}

func TestAnswerAccessors(t *testing.T) {
	t.Parallel()
	req := NewRequest("clientlist")
	empty := NewAnswer(req, nil, QueryError{ID: ErrIDDatabaseEmptyResult, Message: "database empty result set"})
	if !empty.Empty() {
		t.Error("1281 without rows should be empty")
	}
	if empty.OK() {
		t.Error("1281 should not be OK")
	}
	var qerr *QueryError
	if !errors.As(empty.Err(), &qerr) || qerr.ID != ErrIDDatabaseEmptyResult {
		t.Errorf("Err: got %v", empty.Err())
	}
	if empty.First().Len() != 0 {
		t.Error("First on empty answer should be an empty set")
	}

	rows := []*Properties{PropertiesFromMap(map[string]string{"clid": "1"})}
	full := NewAnswer(req, rows, QueryError{})
	if full.Err() != nil {
		t.Errorf("Err: got %v, want nil", full.Err())
	}
	if full.First().Value("clid") != "1" {
		t.Errorf("First: got %v", full.First().Map())
	}
}
