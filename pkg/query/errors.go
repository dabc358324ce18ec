// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package query

import (
	"errors"
	"fmt"
)

// Sentinel errors for the query protocol.
var (
	// ErrMalformedFrame indicates a line that could not be parsed. The frame is
	// dropped and the connection continues.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrProtocolConsistency indicates the server and client disagree about the
	// protocol state, e.g. an answer arrived with no request outstanding. It is
	// fatal for the connection.
	ErrProtocolConsistency = errors.New("protocol consistency violated")

	// ErrResumeWithoutBase indicates an addendum notification arrived without a
	// pending base notification to merge into.
	ErrResumeWithoutBase = errors.New("addendum without pending base notification")

	// ErrTimeout indicates an await gave up before the answer arrived.
	ErrTimeout = errors.New("request timed out")

	// ErrZeroTimeout indicates Await was called without a positive timeout.
	ErrZeroTimeout = errors.New("await requires a positive timeout")

	// ErrUnboundedWait indicates Wait was called with a context without deadline.
	ErrUnboundedWait = errors.New("wait requires a context with deadline")

	// ErrNotCancellable is returned by Promise.Cancel. Once sent, a request is
	// always answered.
	ErrNotCancellable = errors.New("query requests cannot be cancelled")

	// ErrAwaitOnReader indicates a promise was awaited from the goroutine that
	// would have to deliver its answer.
	ErrAwaitOnReader = errors.New("await called from the connection reader")

	// ErrClosed indicates the connection has been shut down.
	ErrClosed = errors.New("connection closed")

	// ErrEmptyCommand indicates a request without a command verb.
	ErrEmptyCommand = errors.New("request has no command")
)

// ParseError describes a line that is not a valid frame.
type ParseError struct {
	Line   string
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed frame: %s: %v: %q", e.Reason, e.Cause, e.Line)
	}
	return fmt.Sprintf("malformed frame: %s: %q", e.Reason, e.Line)
}

// Is reports ErrMalformedFrame.
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformedFrame
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

func newParseError(line, reason string, cause error) error {
	return &ParseError{Line: line, Reason: reason, Cause: cause}
}

// ConsistencyError describes a connection-fatal protocol violation.
type ConsistencyError struct {
	Message string
	Line    string
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("protocol consistency violated: %s", e.Message)
	}
	return fmt.Sprintf("protocol consistency violated: %s: %q", e.Message, e.Line)
}

// Is reports ErrProtocolConsistency.
func (e *ConsistencyError) Is(target error) bool {
	return target == ErrProtocolConsistency
}

// NewConsistencyError creates a new protocol consistency error.
func NewConsistencyError(message, line string) error {
	return &ConsistencyError{Message: message, Line: line}
}

// ConnectionError represents a transport failure.
type ConnectionError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("connection failed: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, cause error) error {
	return &ConnectionError{Message: message, Cause: cause}
}

// Well-known error ids of the server's error block.
const (
	ErrIDOK                      = 0
	ErrIDDatabaseEmptyResult     = 1281
	ErrIDInsufficientPermissions = 2568
)

// QueryError is the error block terminating every answer.
type QueryError struct {
	ID           int
	Message      string
	ExtraMessage string
	FailedPermID int
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	msg := fmt.Sprintf("query error %d: %s", e.ID, e.Message)
	if e.ExtraMessage != "" {
		msg += " (" + e.ExtraMessage + ")"
	}
	if e.FailedPermID != 0 {
		msg += fmt.Sprintf(" [failed_permid=%d]", e.FailedPermID)
	}
	return msg
}

// OK returns true for the success code.
func (e *QueryError) OK() bool {
	return e.ID == ErrIDOK
}
