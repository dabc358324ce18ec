// Copyright 2024-2026 Aiku AI

// Package engine wires a query connection to the event bus, the cache and
// the optional NATS relay, and runs the login sequence.
//
// [Engine] is constructed once from a [Config] and passed to whatever needs
// the bus, the cache or the connection. On Start it dials the server, reads
// the greeting, logs in, selects the virtual server, sets the nickname,
// registers for notifications and asks whoami. It then starts the periodic
// cache refresh and, if configured, the admin HTTP API:
//
//   - POST /api/refresh-cache refreshes both caches and returns their sizes.
//   - GET /api/permission-failures lists requests rejected for missing
//     permissions.
package engine
