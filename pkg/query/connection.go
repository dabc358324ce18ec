// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package query

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
	"github.com/rs/zerolog"
)

const (
	defaultGreetingLines = 2
	greetingMagic        = "TS3"
	lineTerminator       = "\n"
)

// NotificationHandler receives notification frames on the reader goroutine.
// Returning an error matching ErrProtocolConsistency closes the connection;
// other errors are logged.
type NotificationHandler interface {
	HandleNotification(frame *Frame) error
}

// NotificationHandlerFunc adapts a function to NotificationHandler.
type NotificationHandlerFunc func(frame *Frame) error

// HandleNotification calls f(frame).
func (f NotificationHandlerFunc) HandleNotification(frame *Frame) error {
	return f(frame)
}

// Options configures a Connection.
type Options struct {
	Log           zerolog.Logger
	Notifications NotificationHandler
	// OnAnswer is called on the reader goroutine after every fulfilled request.
	OnAnswer func(*Answer)
	// GreetingLines is the number of lines ReadGreeting consumes. Defaults to 2.
	GreetingLines int
}

// Connection is a query connection. A single reader goroutine parses every
// inbound line, fulfills pending requests in FIFO order and forwards
// notifications. Send may be called from any goroutine.
type Connection struct {
	log           zerolog.Logger
	transport     io.ReadWriteCloser
	reader        *bufio.Reader
	handler       NotificationHandler
	onAnswer      func(*Answer)
	greetingLines int

	// writeMu covers enqueue and write so FIFO order equals wire order.
	writeMu sync.Mutex
	queueMu sync.Mutex
	pending []*Promise

	// rows buffers data lines of the answer being received. Reader only.
	rows []*Properties

	readerID  atomic.Int64
	started   atomic.Bool
	closing   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}

	errMu sync.Mutex
	err   error
}

// NewConnection wraps an established transport. Call ReadGreeting and then
// Start before sending.
func NewConnection(transport io.ReadWriteCloser, opts Options) *Connection {
	if opts.GreetingLines <= 0 {
		opts.GreetingLines = defaultGreetingLines
	}
	return &Connection{
		log:           opts.Log.With().Str("component", "query_connection").Logger(),
		transport:     transport,
		reader:        bufio.NewReader(transport),
		handler:       opts.Notifications,
		onAnswer:      opts.OnAnswer,
		greetingLines: opts.GreetingLines,
		done:          make(chan struct{}),
	}
}

// Dial opens a TCP connection to a query endpoint.
func Dial(ctx context.Context, addr string, opts Options) (*Connection, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, NewConnectionError("dial "+addr, err)
	}
	return NewConnection(conn, opts), nil
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// ReadGreeting consumes the server's greeting banner. It must be called
// before Start.
func (c *Connection) ReadGreeting(ctx context.Context) error {
	if rd, ok := c.transport.(readDeadliner); ok {
		if deadline, ok := ctx.Deadline(); ok {
			_ = rd.SetReadDeadline(deadline)
			defer func() { _ = rd.SetReadDeadline(time.Time{}) }()
		}
	}
	for i := range c.greetingLines {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return NewConnectionError("read greeting", err)
		}
		line = trimLine(line)
		if i == 0 && !strings.HasPrefix(line, greetingMagic) {
			return NewConnectionError(fmt.Sprintf("unexpected greeting %q", line), nil)
		}
		c.log.Debug().Str("line", line).Msg("Received greeting")
	}
	return nil
}

// Start launches the reader goroutine. Calling it more than once has no effect.
func (c *Connection) Start() {
	c.startOnce.Do(func() {
		c.started.Store(true)
		go c.readLoop()
	})
}

// Send writes the request and returns its promise. Enqueueing and writing
// happen under one lock, so concurrent senders are answered in wire order.
func (c *Connection) Send(req *Request) (*Promise, error) {
	if req == nil || req.Command() == "" {
		return nil, ErrEmptyCommand
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closing.Load() {
		return nil, ErrClosed
	}

	promise := newPromise(req, c.onReader)
	c.queueMu.Lock()
	c.pending = append(c.pending, promise)
	c.queueMu.Unlock()

	c.log.Debug().Str("request", req.String()).Msg("Sending request")
	if _, err := io.WriteString(c.transport, req.Encode()+lineTerminator); err != nil {
		c.dropPending(promise)
		if c.closing.Load() {
			return nil, fmt.Errorf("%w: write %s: %w", ErrClosed, req.Command(), err)
		}
		err = NewConnectionError("write "+req.Command(), err)
		c.fail(err)
		return nil, err
	}
	return promise, nil
}

// Do sends the request and waits for its answer. A non-success error block is
// returned as *QueryError together with the answer.
func (c *Connection) Do(ctx context.Context, req *Request) (*Answer, error) {
	promise, err := c.Send(req)
	if err != nil {
		return nil, err
	}
	answer, err := promise.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return answer, answer.Err()
}

// Pending returns the number of requests awaiting their answer.
func (c *Connection) Pending() int {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return len(c.pending)
}

// Done is closed once the reader has stopped.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that stopped the connection, or nil if it is still
// running or was closed with Close.
func (c *Connection) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close shuts the transport down and waits for the reader to stop. A Send
// blocked on the transport fails with ErrClosed; Close waits for it to
// return before it does.
func (c *Connection) Close() error {
	c.closing.Store(true)
	err := c.transport.Close()
	c.writeMu.Lock() //nolint:staticcheck // waits for in-flight senders
	c.writeMu.Unlock()

	c.startOnce.Do(func() {})
	switch {
	case !c.started.Load():
		c.stop(nil)
	case !c.onReader():
		<-c.done
	}
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (c *Connection) onReader() bool {
	id := c.readerID.Load()
	return id != 0 && goid.Get() == id
}

func (c *Connection) readLoop() {
	c.readerID.Store(goid.Get())
	for {
		line, err := c.reader.ReadString('\n')
		if line != "" {
			if fatal := c.processLine(line); fatal != nil {
				c.fail(fatal)
				return
			}
		}
		if err != nil {
			if c.closing.Load() {
				c.stop(nil)
			} else {
				c.fail(NewConnectionError("read", err))
			}
			return
		}
	}
}

// processLine handles one inbound line. A non-nil return is fatal.
func (c *Connection) processLine(line string) error {
	if trimLine(line) == "" {
		return nil
	}
	frame, err := ParseFrame(line)
	if err != nil {
		c.log.Warn().Err(err).Str("line", trimLine(line)).Msg("Dropping malformed frame")
		return nil
	}
	c.log.Trace().Str("line", frame.Raw()).Stringer("kind", frame.Kind()).Msg("Received frame")

	switch frame.Kind() {
	case FrameNotification:
		if c.handler == nil {
			return nil
		}
		if err = c.handler.HandleNotification(frame); err != nil {
			if errors.Is(err, ErrProtocolConsistency) {
				return err
			}
			c.log.Err(err).
				Str("caption", frame.Caption()).
				Str("line", frame.Raw()).
				Msg("Failed to handle notification")
		}
		return nil
	case FrameData:
		if c.Pending() == 0 {
			return NewConsistencyError("data line without outstanding request", frame.Raw())
		}
		c.rows = append(c.rows, frame.links...)
		return nil
	default:
		return c.complete(frame)
	}
}

func (c *Connection) complete(frame *Frame) error {
	c.queueMu.Lock()
	if len(c.pending) == 0 {
		c.queueMu.Unlock()
		return NewConsistencyError("answer without outstanding request", frame.Raw())
	}
	promise := c.pending[0]
	c.pending[0] = nil
	c.pending = c.pending[1:]
	c.queueMu.Unlock()

	answer := NewAnswer(promise.Request(), c.rows, *frame.Error())
	c.rows = nil
	if !promise.fulfill(answer) {
		return NewConsistencyError("request answered twice", frame.Raw())
	}
	if !answer.OK() {
		c.log.Debug().
			Str("command", promise.Request().Command()).
			Int("error_id", answer.Status().ID).
			Str("error_msg", answer.Status().Message).
			Msg("Request failed")
	}
	if req := promise.Request(); req.onDone != nil {
		c.safeCall("on_done", func() { req.Finish(answer) })
	}
	if c.onAnswer != nil {
		c.safeCall("on_answer", func() { c.onAnswer(answer) })
	}
	return nil
}

func (c *Connection) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Any("panic", r).Str("callback", name).Msg("Answer callback panicked")
		}
	}()
	fn()
}

func (c *Connection) dropPending(promise *Promise) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	for i, p := range c.pending {
		if p == promise {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// fail records a fatal error and closes the transport. It does not take
// writeMu, since a sender may be blocked writing to the dead transport.
func (c *Connection) fail(err error) {
	c.closing.Store(true)
	c.log.Err(err).Msg("Query connection failed")
	_ = c.transport.Close()
	c.stop(err)
}

func (c *Connection) stop(err error) {
	c.stopOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		if n := c.Pending(); n > 0 {
			c.log.Warn().Int("pending", n).Msg("Connection stopped with unanswered requests")
		}
		close(c.done)
	})
}
