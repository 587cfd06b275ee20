package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")

	// Validation.
	ErrInvalidParameters  = errors.New("invalid parameters")
	ErrInvalidCredentials = errors.New("invalid api credentials")

	// Signing capability.
	ErrSignerUnavailable = errors.New("signer unavailable")
	ErrSignerRejected    = errors.New("signer rejected request")
	ErrUserRejected      = errors.New("user rejected request")
	ErrAddressMismatch   = errors.New("signer address mismatch")
	ErrWrongChain        = errors.New("wrong chain")

	// Network and protocol.
	ErrNetworkDegraded  = errors.New("network degraded")
	ErrProtocolMismatch = errors.New("protocol mismatch")
	ErrTxReverted       = errors.New("transaction reverted")
)

// FieldError reports which intent field failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidParameters, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidParameters }

// InvalidField is shorthand for a *FieldError.
func InvalidField(field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// EndpointError records a failed call to a remote endpoint. Err is one of
// the sentinels above and is what errors.Is matches against.
type EndpointError struct {
	Endpoint string
	Status   int
	Body     string
	Err      error
}

func (e *EndpointError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s: %v", e.Endpoint, e.Err, e.Body)
	}
	return fmt.Sprintf("%s: HTTP %d: %s: %s", e.Endpoint, e.Status, e.Err, e.Body)
}

func (e *EndpointError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a caller input problem.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidParameters) || errors.Is(err, ErrInvalidCredentials)
}

// IsSignerError reports whether err came from the signing capability.
func IsSignerError(err error) bool {
	return errors.Is(err, ErrSignerRejected) ||
		errors.Is(err, ErrUserRejected) ||
		errors.Is(err, ErrSignerUnavailable)
}

// IsFatal reports whether an order built alongside err must never be
// submitted.
func IsFatal(err error) bool {
	return errors.Is(err, ErrProtocolMismatch) || errors.Is(err, ErrAddressMismatch)
}
