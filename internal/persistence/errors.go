package persistence

import "errors"

var (
	// ErrPersistenceFailure wraps any failure to save or restore a snapshot.
	// It is never fatal: in-memory state stays authoritative on save failure,
	// and defaults are used on restore failure.
	ErrPersistenceFailure = errors.New("persistence: failure")

	// ErrSnapshotNotFound is returned by Load when no snapshot has been saved
	// under the requested name.
	ErrSnapshotNotFound = errors.New("persistence: snapshot not found")

	// ErrUnknownEncoding is returned when a stored snapshot uses an encoding
	// this build cannot read.
	ErrUnknownEncoding = errors.New("persistence: unknown snapshot encoding")
)
