package device

import (
	"maps"
	"slices"
)

// Handler binds one resource descriptor to the functions that serve it.
// Nil functions mean the operation is not supported by this resource.
type Handler[I any] struct {
	Def ResourceDef

	// Read returns the current value. It may poll an observed source and
	// update instance state as a side effect.
	Read func(inst I, iid InstanceID) (Value, error)

	// Write applies a value already coerced to Def.Type.
	Write func(inst I, iid InstanceID, v Value) error

	// Forward marks Write as command-forwarding: the value is handed to an
	// outbound transport and local state is left untouched, so no change
	// notification is raised.
	Forward bool

	// Execute runs the resource with optional operator arguments.
	Execute func(inst I, iid InstanceID, args string) error

	// Reset restores the resource's default value.
	Reset func(inst I, iid InstanceID) error

	// ResetNoop makes Reset succeed without effect when no Reset function is
	// set.
	ResetNoop bool
}

// Schema is the static resource table of an object type.
type Schema[I any] map[ResourceID]Handler[I]

// Defs returns the resource descriptors ordered by id. Each descriptor's ID
// is taken from the table key and its Forward flag from the handler.
func (s Schema[I]) Defs() []ResourceDef {
	ids := slices.Sorted(maps.Keys(s))
	defs := make([]ResourceDef, 0, len(ids))
	for _, rid := range ids {
		def := s[rid].Def
		def.ID = rid
		def.Forward = def.Forward || s[rid].Forward
		defs = append(defs, def)
	}
	return defs
}

// lookup returns the handler for rid if its kind permits op.
func (s Schema[I]) lookup(rid ResourceID, op Operation) (Handler[I], bool) {
	h, ok := s[rid]
	if !ok || !h.Def.Kind.Allows(op) {
		return Handler[I]{}, false
	}
	return h, true
}
