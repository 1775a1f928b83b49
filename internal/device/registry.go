package device

import (
	"fmt"
	"slices"
	"sync"
)

// Registry is the instance table of one object. It exclusively owns the
// instances stored in it.
//
// A single mutex protects the table so concurrent Add and Remove calls never
// produce a torn view. The change callback runs after the mutex is released,
// which lets it call back into the registry.
//
// All public methods are thread-safe.
type Registry[I any] struct {
	mu        sync.Mutex
	instances map[InstanceID]I
	onChange  func()
}

// NewRegistry creates an empty registry. onChange, if non-nil, is invoked
// after every successful Add or Remove.
func NewRegistry[I any](onChange func()) *Registry[I] {
	return &Registry[I]{
		instances: make(map[InstanceID]I),
		onChange:  onChange,
	}
}

// Add builds and stores a new instance.
//
// Parameters:
//   - candidate: requested id, or InstanceIDInvalid to take the lowest free id
//   - build: constructs the instance for the chosen id; it runs under the
//     registry lock and must not call back into the registry
//
// Returns:
//   - InstanceID: the id the instance was stored under
//   - error: ErrDuplicateInstance if candidate is live, ErrNoFreeInstance if
//     the table is full, or the error returned by build
func (r *Registry[I]) Add(candidate InstanceID, build func(InstanceID) (I, error)) (InstanceID, error) {
	iid, err := r.add(candidate, build)
	if err != nil {
		return iid, err
	}
	if r.onChange != nil {
		r.onChange()
	}
	return iid, nil
}

func (r *Registry[I]) add(candidate InstanceID, build func(InstanceID) (I, error)) (InstanceID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	iid := candidate
	if iid == InstanceIDInvalid {
		free, ok := r.lowestFree()
		if !ok {
			return InstanceIDInvalid, ErrNoFreeInstance
		}
		iid = free
	} else if _, exists := r.instances[iid]; exists {
		return iid, fmt.Errorf("%w: %d", ErrDuplicateInstance, iid)
	}

	inst, err := build(iid)
	if err != nil {
		return iid, fmt.Errorf("building instance %d: %w", iid, err)
	}
	r.instances[iid] = inst
	return iid, nil
}

// lowestFree must be called with r.mu held.
func (r *Registry[I]) lowestFree() (InstanceID, bool) {
	for iid := InstanceID(0); iid < InstanceIDInvalid; iid++ {
		if _, used := r.instances[iid]; !used {
			return iid, true
		}
	}
	return 0, false
}

// Remove deletes an instance and returns it.
// Returns ErrUnknownInstance if the id is not live.
func (r *Registry[I]) Remove(iid InstanceID) (I, error) {
	r.mu.Lock()
	inst, ok := r.instances[iid]
	if ok {
		delete(r.instances, iid)
	}
	r.mu.Unlock()

	if !ok {
		var zero I
		return zero, fmt.Errorf("%w: %d", ErrUnknownInstance, iid)
	}
	if r.onChange != nil {
		r.onChange()
	}
	return inst, nil
}

// Get returns the instance stored under iid.
func (r *Registry[I]) Get(iid InstanceID) (I, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[iid]
	return inst, ok
}

// IDs returns the live instance ids in strictly ascending order.
func (r *Registry[I]) IDs() []InstanceID {
	r.mu.Lock()
	ids := make([]InstanceID, 0, len(r.instances))
	for iid := range r.instances {
		ids = append(ids, iid)
	}
	r.mu.Unlock()

	slices.Sort(ids)
	return ids
}

// Len returns the number of live instances.
func (r *Registry[I]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// Each calls fn for every instance in ascending id order. It iterates over a
// snapshot, so fn may add or remove instances.
func (r *Registry[I]) Each(fn func(InstanceID, I)) {
	r.mu.Lock()
	snapshot := make(map[InstanceID]I, len(r.instances))
	for iid, inst := range r.instances {
		snapshot[iid] = inst
	}
	r.mu.Unlock()

	ids := make([]InstanceID, 0, len(snapshot))
	for iid := range snapshot {
		ids = append(ids, iid)
	}
	slices.Sort(ids)
	for _, iid := range ids {
		fn(iid, snapshot[iid])
	}
}
