package device

import (
	"errors"
	"fmt"
	"sync"
)

// TxState is the state of an object's transaction coordinator.
type TxState uint8

// Transaction states. A transaction moves Idle → Begun → Validated and
// returns to Idle on Commit or Rollback. Rollback is also allowed straight
// from Begun.
const (
	TxIdle TxState = iota
	TxBegun
	TxValidated
)

// String returns the state name.
func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxBegun:
		return "begun"
	case TxValidated:
		return "validated"
	}
	return "unknown"
}

// TxCoordinator sequences begin/validate/commit/rollback for one object.
// Only one transaction may be in flight at a time.
type TxCoordinator struct {
	mu       sync.Mutex
	state    TxState
	fields   func() StagedSet
	validate func() error
	active   StagedSet
}

// NewTxCoordinator creates a coordinator.
//
// Parameters:
//   - fields: returns the staged fields of every current instance; called on
//     Begin
//   - validate: consistency check over the post-write state; nil accepts
//     everything
func NewTxCoordinator(fields func() StagedSet, validate func() error) *TxCoordinator {
	return &TxCoordinator{fields: fields, validate: validate}
}

// State returns the current state.
func (c *TxCoordinator) State() TxState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetValidator replaces the validation hook.
func (c *TxCoordinator) SetValidator(validate func() error) {
	c.mu.Lock()
	c.validate = validate
	c.mu.Unlock()
}

// Begin snapshots all staged fields.
func (c *TxCoordinator) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != TxIdle {
		return ErrTransactionInProgress
	}
	if c.fields != nil {
		c.active = c.fields()
	}
	c.active.Begin()
	c.state = TxBegun
	return nil
}

// Validate runs the validation hook. On failure the transaction stays in the
// Begun state and must be rolled back.
func (c *TxCoordinator) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == TxIdle {
		return ErrNoTransaction
	}
	if c.validate != nil {
		if err := c.validate(); err != nil {
			c.state = TxBegun
			return fmt.Errorf("%w: %w", ErrValidationFailed, err)
		}
	}
	c.state = TxValidated
	return nil
}

// Commit makes the writes permanent. It requires a successful Validate.
func (c *TxCoordinator) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case TxIdle:
		return ErrNoTransaction
	case TxBegun:
		return ErrNotValidated
	}
	c.active.Commit()
	c.active = nil
	c.state = TxIdle
	return nil
}

// Rollback restores every staged field to its value at Begin.
func (c *TxCoordinator) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == TxIdle {
		return ErrNoTransaction
	}
	c.active.Rollback()
	c.active = nil
	c.state = TxIdle
	return nil
}

// Transactional is the transaction surface the engine drives.
type Transactional interface {
	TransactionBegin() error
	TransactionValidate() error
	TransactionCommit() error
	TransactionRollback() error
}

// WithTransaction brackets batch with begin, validate and commit. If batch or
// validation fails the transaction is rolled back and the failure returned.
func WithTransaction(tx Transactional, batch func() error) error {
	if err := tx.TransactionBegin(); err != nil {
		return err
	}

	if err := batch(); err != nil {
		return errors.Join(err, tx.TransactionRollback())
	}
	if err := tx.TransactionValidate(); err != nil {
		return errors.Join(err, tx.TransactionRollback())
	}
	return tx.TransactionCommit()
}
