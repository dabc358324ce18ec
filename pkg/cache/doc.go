// Copyright 2024-2026 Aiku AI

// Package cache keeps in-memory replicas of the server's clients and
// channels. Watchers apply notification deltas and a Refresher replaces the
// maps periodically, both under the DataCache lock. The Refresher applies
// its listing on the connection reader, in order with the notifications.
// A TargetInjector attaches the cached entity to each notification before
// other listeners see it.
package cache
