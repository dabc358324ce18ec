// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package query implements the client side of the TeamSpeak ServerQuery line
// protocol.
//
// The protocol carries no correlation ids. Every request is answered by zero
// or more data lines followed by exactly one error block, and answers arrive
// in the order the requests were written. Notifications can arrive between
// any two lines.
//
// # Core Types
//
// [Frame] is one parsed server line. [ParseFrame] classifies it as data,
// notification or error block and unescapes its properties.
//
// [Request] builds an outgoing command. [Connection.Send] enqueues it and
// writes it under one lock, returning a [Promise] that the reader goroutine
// fulfills with an [Answer].
//
// [Connection] owns the transport. Its single reader goroutine parses lines,
// completes promises in FIFO order and hands notification frames to a
// [NotificationHandler]. Awaiting a promise from that goroutine fails with
// [ErrAwaitOnReader] rather than deadlocking.
//
// # Errors
//
// Malformed lines are logged and dropped. An answer with no outstanding
// request, or a handler error matching [ErrProtocolConsistency], stops the
// connection; [Connection.Err] then reports the cause.
//
// # Sub-packages
//
//   - queryfmt escapes and unescapes property values.
package query
