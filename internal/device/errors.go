package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrUnknownInstance) {
//	    // handle not found case
//	}
//
// All of them are caller-facing: they describe a bad request rather than a
// broken runtime, and are reported back to whoever issued the operation.
var (
	// ErrDuplicateInstance is returned when adding an instance whose id is
	// already live in the object.
	ErrDuplicateInstance = errors.New("device: duplicate instance")

	// ErrUnknownInstance is returned when an operation addresses an instance
	// id that does not exist.
	ErrUnknownInstance = errors.New("device: unknown instance")

	// ErrUnsupportedResource is returned when a resource id is not part of the
	// object's schema or its kind does not permit the requested operation.
	ErrUnsupportedResource = errors.New("device: unsupported resource")

	// ErrUnsupportedOperation is returned when a resource has no handler for
	// the requested execute or reset.
	ErrUnsupportedOperation = errors.New("device: unsupported operation")

	// ErrInvalidValue is returned when an inbound value cannot be decoded to
	// the resource's declared type.
	ErrInvalidValue = errors.New("device: invalid value")

	// ErrNoFreeInstance is returned when an auto-assigned instance id is
	// requested but every id is in use.
	ErrNoFreeInstance = errors.New("device: no free instance id")

	// ErrInvalidPath is returned when a textual resource path cannot be parsed.
	ErrInvalidPath = errors.New("device: invalid path")
)

// Transaction errors.
var (
	// ErrTransactionInProgress is returned by Begin while another transaction
	// on the same object has not reached commit or rollback.
	ErrTransactionInProgress = errors.New("device: transaction already in progress")

	// ErrNoTransaction is returned by Validate, Commit or Rollback when no
	// transaction has been begun.
	ErrNoTransaction = errors.New("device: no transaction in progress")

	// ErrNotValidated is returned by Commit when Validate has not succeeded.
	ErrNotValidated = errors.New("device: transaction not validated")

	// ErrValidationFailed wraps the error returned by an object's validation
	// hook.
	ErrValidationFailed = errors.New("device: transaction validation failed")
)
