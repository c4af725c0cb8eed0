package providers

import (
	"errors"
	"fmt"

	"github.com/brisapay/gateway/pkg/types"
)

// ValidationError marks a caller/data problem detected before any network
// call. Never retried, never mutates state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: field %q %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type RejectReason string

const (
	// RejectReasonDeclined is a plain business decline (insufficient funds,
	// invalid pix key and the like).
	RejectReasonDeclined RejectReason = "declined"
	// RejectReasonNotFound means the provider does not know the resource.
	RejectReasonNotFound RejectReason = "not_found"
	// RejectReasonWindowExpired means the provider refused a refund because
	// its own window has closed.
	RejectReasonWindowExpired RejectReason = "window_expired"
)

// RejectedError is an explicit 4xx-class business rejection by the provider.
// Surfaced immediately, never retried.
type RejectedError struct {
	Provider types.Provider
	Reason   RejectReason
	Code     string
	Message  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected the request (%s): %s %s", e.Provider, e.Reason, e.Code, e.Message)
}

// UnavailableError is a network failure or 5xx response that persisted
// through any local retries.
type UnavailableError struct {
	Provider types.Provider
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// InconsistentError means the provider returned a shape the system cannot
// interpret. The payment is left pending for manual reconciliation.
type InconsistentError struct {
	Provider types.Provider
	Detail   string
}

func (e *InconsistentError) Error() string {
	return fmt.Sprintf("%s returned an uninterpretable response: %s", e.Provider, e.Detail)
}
