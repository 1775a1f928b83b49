package engine

import (
	"github.com/nerrad567/gray-logic-agent/internal/device"
)

// Op is a request operation.
type Op uint8

// Request operations.
const (
	OpRead Op = iota + 1
	OpWrite
	OpExecute
	OpReset
	OpList     // instance ids of an object
	OpDiscover // resource descriptors of an object
)

// String returns the lower-case operation name.
func (op Op) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpExecute:
		return "execute"
	case OpReset:
		return "reset"
	case OpList:
		return "list"
	case OpDiscover:
		return "discover"
	}
	return "unknown"
}

// Request is one operation addressed to a registered object.
//
// Read accepts resource and instance paths. Write accepts a resource path
// with Value, or an instance path with Values; either way the writes run in
// one transaction. Execute and Reset need a resource path. List and Discover
// need at least an object path.
type Request struct {
	Op     Op
	Path   device.Path
	Value  device.Value
	Values map[device.ResourceID]device.Value
	Args   string

	// SSID identifies the requesting server. LocalSSID bypasses access
	// control.
	SSID uint16
}

// LocalSSID marks requests issued by the local operator.
const LocalSSID uint16 = 0

// ResourceValue is one resource of an instance read.
type ResourceValue struct {
	ID    device.ResourceID `json:"id"`
	Name  string            `json:"name,omitempty"`
	Value device.Value      `json:"value"`
}

// Response carries the result of a request. Only the fields relevant to the
// operation are set.
type Response struct {
	Path      device.Path
	Value     device.Value
	Values    []ResourceValue
	Instances []device.InstanceID
	Resources []device.ResourceDef
}
