// Package engine is the agent's in-process protocol engine.
//
// It stands where an LwM2M client library would: objects are registered with
// it, it drives their read/write/execute/reset and transaction callbacks, and
// it receives their change notifications. The wire protocol is out of scope;
// requests arrive from the operator console and the HTTP API instead.
//
// Request flow:
//
//	HTTP handler / console ──Submit──▶ request queue
//	                                        │
//	event loop ──Poll(ctx, 100ms)──────────▶ serve ──▶ ACL check ──▶ Object
//	                                        │
//	                                        ▼
//	                          Flush ──▶ NotifySink (MQTT mirror)
//
// Poll is the scheduler's bounded wait, so every request is served on the
// event loop goroutine and object state keeps a single writer.
//
// Notifications are recorded as they arrive and coalesced per path until the
// next flush. The flushed value is re-read at flush time.
package engine
