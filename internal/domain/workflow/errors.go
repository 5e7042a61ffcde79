package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")
)

// ValidationError indicates input rejected before any remote write
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NotFoundError indicates the invoice does not exist
type NotFoundError struct {
	InvoiceID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("invoice %s not found", e.InvoiceID)
}

// PersistenceError wraps a store failure. Earlier writes of the same
// operation are not rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DuplicateInvoiceError interrupts an approval after it was persisted so the
// reviewer can decide whether to override the duplicate flag.
type DuplicateInvoiceError struct {
	InvoiceID string
	Payload   map[string]interface{}
}

func (e *DuplicateInvoiceError) Error() string {
	return fmt.Sprintf("invoice %s flagged as duplicate", e.InvoiceID)
}

// InvalidTransitionError reports an action on an invoice that is no longer pending
type InvalidTransitionError struct {
	InvoiceID string
	Current   State
	Trigger   Trigger
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invoice %s: cannot %s from %s", e.InvoiceID, e.Trigger, e.Current)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// NewValidationError creates a ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Persistence wraps err as a PersistenceError, passing nil through
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
