// Package observed holds thread-safe cells for physical quantities that are
// produced on one goroutine (the telemetry feed) and polled on another (the
// device runtime).
//
// A cell is created at startup, lives for the lifetime of the process and is
// mutated in place. Multi-component quantities are stored as a single value so
// readers never see a torn update:
//
//	accel := observed.New(observed.Vector3{})
//	accel.Set(observed.Vector3{X: 0.1, Y: 9.8, Z: 0.0}) // telemetry goroutine
//	v := accel.Get()                                    // loop goroutine
package observed

import "sync"

// Value is a mutex-guarded cell holding the latest reading of a quantity.
// The zero value is ready to use and holds the zero value of T.
type Value[T comparable] struct {
	mu  sync.Mutex
	val T
}

// New returns a cell initialised to v.
func New[T comparable](v T) *Value[T] {
	return &Value[T]{val: v}
}

// Get returns the current reading.
func (c *Value[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val
}

// Set replaces the current reading.
func (c *Value[T]) Set(v T) {
	c.mu.Lock()
	c.val = v
	c.mu.Unlock()
}

// Swap replaces the current reading and reports whether it differed from
// the previous one.
func (c *Value[T]) Swap(v T) (old T, changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old = c.val
	c.val = v
	return old, old != v
}

// Vector3 is a three-axis reading such as acceleration. It is always stored
// and loaded as one unit.
type Vector3 struct {
	X float64
	Y float64
	Z float64
}

// Source is the read side of a cell. Object instances depend on Source rather
// than on the concrete cell so tests can supply fixed readings.
type Source[T any] interface {
	Get() T
}

// SourceFunc adapts a plain function to Source.
type SourceFunc[T any] func() T

// Get calls f.
func (f SourceFunc[T]) Get() T { return f() }
