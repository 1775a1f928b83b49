// Package device provides the object runtime of the Gray Logic agent.
//
// The agent exposes its sensors and actuators through a generic
// object/instance/resource model addressed as /oid/iid/rid. This package holds
// the parts of that model that do not depend on any particular object type.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                            Model[I]                              │
//	│                                                                  │
//	│  ┌────────────────┐   ┌─────────────────┐   ┌────────────────┐   │
//	│  │  Registry[I]   │   │   Schema[I]     │   │ TxCoordinator  │   │
//	│  │ (registry.go)  │   │  (schema.go)    │   │(transaction.go)│   │
//	│  │                │   │                 │   │                │   │
//	│  │ • add/remove   │   │ • rid → kind    │   │ • begin        │   │
//	│  │ • ascending ids│   │ • read/write/   │   │ • validate     │   │
//	│  │ • one mutex    │   │   exec/reset fns│   │ • commit/roll  │   │
//	│  └────────────────┘   └─────────────────┘   └────────────────┘   │
//	│           │                    │                     │           │
//	└───────────│────────────────────│─────────────────────│───────────┘
//	            ▼                    ▼                     ▼
//	     Notifier (engine)     observed sources      Staged[T] fields
//
// # Key Types
//
//   - Object: the surface the protocol engine drives
//   - Model: generic Object built from a Schema and an instance type
//   - Handler: one resource's descriptor and its functions
//   - Staged: a transactional instance field
//   - Value: a typed resource value (string, boolean, integer, float)
//
// # Dispatch Rules
//
// The resource is checked before the instance: an unknown resource id, or a
// kind that forbids the operation, fails with ErrUnsupportedResource even for
// a missing instance. A missing instance then fails with ErrUnknownInstance.
// A resource without an execute or reset function fails with
// ErrUnsupportedOperation.
//
// Writes to local resources raise a change notification. Writes to
// forwarding resources do not touch local state; the new value becomes
// visible only once it comes back through the observed source.
//
// # Thread Safety
//
// Registries are safe for concurrent use. Dispatch and transactions are
// expected to run on the event loop goroutine only; notifications are never
// raised while a registry lock is held.
package device
