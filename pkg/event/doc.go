// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package event turns notification frames into typed events and delivers
// them to listeners.
//
// [Marshaller] maps captions to a [Kind] through a lookup table, drops
// immediate repeats of dedup-sensitive notifications, reassembles channel
// edits the server splits into a base frame and addenda, and expands chained
// frames into one [Notification] per link.
//
// [Bus] delivers events by [Priority]. Handlers run in priority order over a
// snapshot taken when Fire starts, so registration changes and nested Fire
// calls from inside a handler are safe. Handler errors and panics are logged
// per listener.
//
// [Dispatcher] glues both to a query connection.
package event
