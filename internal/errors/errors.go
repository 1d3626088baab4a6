package errors

import (
	"errors"
	"fmt"
	"time"
)

// Common error types for the identity client
var (
	// Session errors
	ErrSessionExpired        = errors.New("session expired")
	ErrNoSession             = errors.New("no session")
	ErrAuthenticationExpired = errors.New("authentication expired") // refresh itself failed, session cleared

	// Transport errors
	ErrNetwork = errors.New("network failure")
	ErrTimeout = errors.New("request timeout")

	// Transfer errors
	ErrMalformedTransferToken = errors.New("malformed transfer token")

	// Tenant errors
	ErrTenantNotFound = errors.New("tenant not found")
	ErrNoTenant       = errors.New("no tenant resolved")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// TimeoutError wraps ErrTimeout with the elapsed duration at the moment the
// deadline fired, so callers can report how long the request actually waited.
type TimeoutError struct {
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timeout after %s", e.Elapsed)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// HTTPStatusError represents a non-2xx response that is not handled by the
// auth retry path (including a 401 that survived the retry).
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d", e.StatusCode)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
