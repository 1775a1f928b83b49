package engine

import "errors"

var (
	// ErrObjectExists is returned by Register for an object id already
	// registered.
	ErrObjectExists = errors.New("engine: object already registered")

	// ErrUnknownObject is returned when a request addresses an object id
	// that was never registered.
	ErrUnknownObject = errors.New("engine: unknown object")

	// ErrAccessDenied is returned when the requesting server's access
	// control entry does not grant the operation.
	ErrAccessDenied = errors.New("engine: access denied")

	// ErrInvalidRequest is returned for a request whose path depth does not
	// fit the operation.
	ErrInvalidRequest = errors.New("engine: invalid request")

	// ErrInvalidACL is returned when an access control entry is malformed.
	ErrInvalidACL = errors.New("engine: invalid access control entry")

	// ErrEngineClosed is returned once Close has been called. The event loop
	// treats it as a fatal I/O error and stops.
	ErrEngineClosed = errors.New("engine: closed")
)
