// Package api implements the agent's HTTP management API.
//
// This package provides:
//   - REST endpoints over the object model (list, discover, read, write,
//     execute, reset)
//   - Health and runtime status endpoints
//   - The Prometheus scrape endpoint
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Architecture
//
// Handlers never touch object state directly. Every resource operation is
// submitted to the protocol engine, which serves it on the event loop
// goroutine alongside the scheduler's own tasks:
//
//	HTTP handler ──Submit──► engine request queue ──► loop goroutine
//	             ◄─Response──────────────────────────┘
//
// Requests carry the configured server SSID, so access control entries
// apply to the API the same way they apply to a management server.
//
// # Routes
//
//	GET    /api/v1/health
//	GET    /api/v1/status
//	GET    /api/v1/objects
//	GET    /api/v1/objects/{oid}
//	GET    /api/v1/objects/{oid}/{iid}
//	PUT    /api/v1/objects/{oid}/{iid}
//	GET    /api/v1/objects/{oid}/{iid}/{rid}
//	PUT    /api/v1/objects/{oid}/{iid}/{rid}
//	DELETE /api/v1/objects/{oid}/{iid}/{rid}
//	POST   /api/v1/objects/{oid}/{iid}/{rid}/execute
//	GET    /metrics
package api
