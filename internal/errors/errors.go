package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the session lifecycle
var (
	// Bad username/password, or the long-lived credential is gone on refresh
	ErrInvalidCredentials = errors.New("invalid credentials")
	// Required fields missing (400-class response)
	ErrMalformedRequest = errors.New("malformed request")
	// No response was received (network, DNS, timeout)
	ErrUnreachable = errors.New("auth server unreachable")
	// 5xx or anything unclassified
	ErrServerError = errors.New("auth server error")
	// Refresh also failed, the session has been forced to logout
	ErrUnauthorized = errors.New("unauthorized")
	// The operation completed after a newer login/logout and was discarded
	ErrSuperseded = errors.New("session superseded")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid config")
)

// GatewayError describes a failed round trip to the remote auth API.
// It unwraps to one of the taxonomy sentinels.
type GatewayError struct {
	Op      string // login, refresh, logout
	Kind    error  // one of the taxonomy sentinels
	Status  int    // HTTP status, 0 when no response was received
	Message string // server supplied message, if any
	Err     error  // underlying transport error, if any
}

func (e *GatewayError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Kind, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *GatewayError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
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

// New is errors.New, re-exported so callers need a single import.
func New(text string) error {
	return errors.New(text)
}
