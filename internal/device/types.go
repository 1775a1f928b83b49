package device

import (
	"fmt"
	"strconv"
	"strings"
)

// ObjectID identifies an object type, e.g. 3303 for a temperature sensor.
type ObjectID uint16

// InstanceID identifies one instance within an object.
type InstanceID uint16

// ResourceID identifies one resource within an instance.
type ResourceID uint16

// InstanceIDInvalid is the reserved instance id. Passing it to AddInstance
// asks the registry to pick the lowest free id.
const InstanceIDInvalid InstanceID = 65535

// Kind describes which operations a resource permits.
type Kind uint8

// Resource kinds. R, W and RW resources hold values; E resources are
// executable and have no value.
const (
	KindR  Kind = 1 << iota // read-only
	KindW                   // write-only
	KindE                   // executable

	KindRW = KindR | KindW
)

// Allows reports whether a resource of kind k may take part in op.
// Reset is not governed by kind; it depends on whether the resource declares a
// reset handler.
func (k Kind) Allows(op Operation) bool {
	switch op {
	case OpRead:
		return k&KindR != 0
	case OpWrite:
		return k&KindW != 0
	case OpExecute:
		return k&KindE != 0
	case OpReset:
		return true
	}
	return false
}

// String returns the conventional short form (R, W, RW, E).
func (k Kind) String() string {
	switch k {
	case KindR:
		return "R"
	case KindW:
		return "W"
	case KindRW:
		return "RW"
	case KindE:
		return "E"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Operation is a dispatcher operation.
type Operation uint8

// Dispatcher operations.
const (
	OpRead Operation = iota + 1
	OpWrite
	OpExecute
	OpReset
)

// String returns the lower-case operation name.
func (op Operation) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpExecute:
		return "execute"
	case OpReset:
		return "reset"
	}
	return "unknown"
}

// ResourceDef is the static descriptor of one resource. Descriptors are fixed
// per object type and never change after the object is built.
type ResourceDef struct {
	ID       ResourceID
	Name     string
	Kind     Kind
	Type     ValueType // declared value type; TypeNone for executables
	Multiple bool
	Forward  bool // writes leave the device; see Handler.Forward
}

// Path addresses an object, an instance or a single resource.
// Unset trailing components are reported by Depth.
type Path struct {
	Object   ObjectID
	Instance InstanceID
	Resource ResourceID
	depth    int
}

// ObjectPath returns the path /oid.
func ObjectPath(oid ObjectID) Path { return Path{Object: oid, depth: 1} }

// InstancePath returns the path /oid/iid.
func InstancePath(oid ObjectID, iid InstanceID) Path {
	return Path{Object: oid, Instance: iid, depth: 2}
}

// ResourcePath returns the path /oid/iid/rid.
func ResourcePath(oid ObjectID, iid InstanceID, rid ResourceID) Path {
	return Path{Object: oid, Instance: iid, Resource: rid, depth: 3}
}

// Depth is 1 for an object path, 2 for an instance path, 3 for a resource
// path and 0 for the zero value.
func (p Path) Depth() int { return p.depth }

// String formats the path as /oid[/iid[/rid]].
func (p Path) String() string {
	switch p.depth {
	case 1:
		return fmt.Sprintf("/%d", p.Object)
	case 2:
		return fmt.Sprintf("/%d/%d", p.Object, p.Instance)
	case 3:
		return fmt.Sprintf("/%d/%d/%d", p.Object, p.Instance, p.Resource)
	}
	return "/"
}

// ParsePath parses "/oid", "/oid/iid" or "/oid/iid/rid". The leading slash is
// optional. Instance id 65535 is reserved and rejected.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(s), "/"), "/")
	if len(parts) == 0 || len(parts) > 3 || parts[0] == "" {
		return Path{}, fmt.Errorf("%w: %q", ErrInvalidPath, s)
	}

	ids := make([]uint16, len(parts))
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return Path{}, fmt.Errorf("%w: %q: %w", ErrInvalidPath, s, err)
		}
		ids[i] = uint16(n)
	}

	p := Path{Object: ObjectID(ids[0]), depth: len(ids)}
	if len(ids) > 1 {
		p.Instance = InstanceID(ids[1])
		if p.Instance == InstanceIDInvalid {
			return Path{}, fmt.Errorf("%w: %q: reserved instance id", ErrInvalidPath, s)
		}
	}
	if len(ids) > 2 {
		p.Resource = ResourceID(ids[2])
	}
	return p, nil
}
