/*
errors.go - Centralized error types for the pay rule engine

ERROR CATEGORIES:
  1. Input errors - headcount below one, negative tier values, bad month
  2. Persistence errors - the rule table could not be read or written
  3. Lookup errors - a referenced record does not exist

An unknown commission plan is NOT an error: it resolves to zero commission.

USAGE:
  if errors.Is(err, payroll.ErrInvalidInput) {
      // reject the request
  }
  var pe *payroll.PersistenceError
  if errors.As(err, &pe) {
      log.Printf("write failed during %s: %v", pe.Op, pe.Err)
  }
*/
package payroll

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned before any calculation when an argument is
	// out of range (headcount < 1, negative tier bounds, month outside 1-12).
	ErrInvalidInput = errors.New("invalid input")

	// ErrPersistence is returned when a rule table could not be durably read
	// or written. Live state is left unchanged.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInputError names the offending field.
type InvalidInputError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// PersistenceError wraps a store failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrPersistence while Unwrap still exposes the cause.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func persistenceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func tierField(i int, name string) string {
	return fmt.Sprintf("tiers[%d].%s", i, name)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
