package provider

import (
	"errors"
	"fmt"
)

// ErrorCategory defines the normalized failure taxonomy for provider calls.
type ErrorCategory string

const (
	// ErrorRemote indicates a transport or infrastructure fault at the
	// vendor. Retryable by the next reconciliation pass, never inline.
	ErrorRemote ErrorCategory = "remote"

	// ErrorVerification indicates a business-rule failure reported by the
	// vendor or detected locally. Settled into entity state, not retried.
	ErrorVerification ErrorCategory = "verification"

	// ErrorDocument indicates a document-level business failure.
	ErrorDocument ErrorCategory = "document"

	// ErrorPresenceCheck indicates a liveness session failure.
	ErrorPresenceCheck ErrorCategory = "presence_check"

	// ErrorInternal indicates an unexpected adapter error.
	ErrorInternal ErrorCategory = "internal"
)

// Error wraps provider failures with normalized categorization.
type Error struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.ProviderID, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError creates a normalized provider error. Only remote faults are
// retryable.
func NewError(category ErrorCategory, providerID, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorRemote,
	}
}

// IsRemote reports whether the error is a retryable transport fault.
func IsRemote(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category == ErrorRemote
	}
	return false
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error.
func GetCategory(err error) ErrorCategory {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

// Sentinel errors for registry lookups.
var (
	ErrProviderNotFound = errors.New("provider not found")
)
