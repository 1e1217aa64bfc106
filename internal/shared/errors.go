package shared

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the accounting core. Package level errors wrap one of
// these so callers can branch with errors.Is.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrStateConflict indicates the operation is not allowed in the current state.
	ErrStateConflict = errors.New("state conflict")
	// ErrBalanceExceeded indicates a payment larger than the remaining balance.
	ErrBalanceExceeded = errors.New("amount exceeds remaining balance")
	// ErrConfigurationMissing indicates a required ledger account is not set up.
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrImbalancedEntry indicates debit and credit totals differ.
	ErrImbalancedEntry = errors.New("journal entry is not balanced")
)

// Validationf wraps a formatted message as a validation error.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflictf wraps a formatted message as a state conflict.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStateConflict, fmt.Sprintf(format, args...))
}

// MissingAccount reports a well-known account code that does not resolve.
func MissingAccount(label, code string) error {
	return fmt.Errorf("%w: %s account (code %q) not found", ErrConfigurationMissing, label, code)
}
