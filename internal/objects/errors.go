package objects

import "errors"

var (
	// ErrNoForwarder is returned by an output state write when no command
	// transport is attached.
	ErrNoForwarder = errors.New("objects: no command forwarder")

	// ErrNoSource is returned when an instance is added without a value
	// source.
	ErrNoSource = errors.New("objects: instance has no value source")

	// ErrInvalidRange is returned when a sensor's minimum range exceeds its
	// maximum range.
	ErrInvalidRange = errors.New("objects: invalid sensor range")

	// ErrSnapshotVersion is returned when restoring a snapshot written by an
	// incompatible version.
	ErrSnapshotVersion = errors.New("objects: unsupported snapshot version")
)
