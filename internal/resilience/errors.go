// Package resilience provides the pipeline error taxonomy plus retry
// and circuit breaker patterns for provider and persistence calls.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ValidationError marks a bad input document. Terminal, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

// NewValidationError creates a terminal validation failure.
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// IsValidation reports whether the chain contains a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ProviderError marks a transport or provider-side failure of the
// extraction provider. Transient: retried per the stage retry policy.
type ProviderError struct {
	Err        error
	StatusCode int
}

func (e *ProviderError) Error() string {
	return e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps an error as a provider failure with an
// optional HTTP status code.
func NewProviderError(err error, statusCode int) *ProviderError {
	return &ProviderError{Err: err, StatusCode: statusCode}
}

// IsProvider reports whether the chain contains a ProviderError.
func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// PersistenceError marks a store write failure. Surfaced to the
// caller; the record stays at its last-known-good state and the stage
// is safe to retry because stage writes are upsert-idempotent.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps a store failure with the failing operation.
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// RuleEvaluationError marks malformed field data that prevents one
// discrepancy rule from evaluating. The rule is skipped; other rules
// still run.
type RuleEvaluationError struct {
	Rule  string
	Field string
	Err   error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s: field %s: %v", e.Rule, e.Field, e.Err)
}

func (e *RuleEvaluationError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether the error is safe to retry: an explicit
// ProviderError with a retryable status, or a network-level timeout or
// connection failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.StatusCode == 0 {
			return true
		}
		return IsTransientHTTPStatus(pe.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED)
}

// IsTransientHTTPStatus reports whether the status code indicates a
// transient server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
