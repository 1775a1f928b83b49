package device

// Stageable is a field that can take part in a transaction.
type Stageable interface {
	Begin()
	Commit()
	Rollback()
}

// Staged wraps a plain instance field with a backup slot used while a
// transaction is in flight.
//
//	type output struct {
//	    polarity device.Staged[bool]
//	}
//
// Begin copies the current value into the backup slot, Rollback restores it
// and Commit drops it. Outside a transaction Staged behaves like the bare
// value.
type Staged[T any] struct {
	value   T
	backup  T
	pending bool
}

// NewStaged returns a field holding v.
func NewStaged[T any](v T) Staged[T] {
	return Staged[T]{value: v}
}

// Get returns the current value, including uncommitted writes.
func (s *Staged[T]) Get() T { return s.value }

// Set replaces the current value.
func (s *Staged[T]) Set(v T) { s.value = v }

// Pending reports whether a backup is held.
func (s *Staged[T]) Pending() bool { return s.pending }

// Begin snapshots the current value.
func (s *Staged[T]) Begin() {
	s.backup = s.value
	s.pending = true
}

// Commit keeps the current value and clears the backup.
func (s *Staged[T]) Commit() {
	var zero T
	s.backup = zero
	s.pending = false
}

// Rollback restores the value captured by Begin. Without a prior Begin it
// does nothing.
func (s *Staged[T]) Rollback() {
	if !s.pending {
		return
	}
	s.value = s.backup
	s.Commit()
}

// StagedSet applies transaction steps to a group of fields.
type StagedSet []Stageable

// Begin snapshots every field.
func (s StagedSet) Begin() {
	for _, f := range s {
		f.Begin()
	}
}

// Commit clears every backup.
func (s StagedSet) Commit() {
	for _, f := range s {
		f.Commit()
	}
}

// Rollback restores every field.
func (s StagedSet) Rollback() {
	for _, f := range s {
		f.Rollback()
	}
}

// Stager is implemented by instances that own staged fields.
type Stager interface {
	StagedFields() StagedSet
}
