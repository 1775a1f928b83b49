package command

import "errors"

var (
	// ErrUnknownCommand is returned for an unrecognised verb.
	ErrUnknownCommand = errors.New("command: unknown command")

	// ErrUsage is returned when a command has missing or malformed
	// arguments.
	ErrUsage = errors.New("command: usage")

	// ErrPersistenceDisabled is returned by persist when no store is
	// configured.
	ErrPersistenceDisabled = errors.New("command: persistence disabled")
)
