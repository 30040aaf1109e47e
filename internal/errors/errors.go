package errors

import (
	"errors"
	"fmt"
)

// Common error types for the SSO service
var (
	// Authentication errors
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrInvalidState         = errors.New("invalid state")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidToken         = errors.New("invalid token")
	ErrNonceMismatch        = errors.New("ID token nonce does not match expected value")

	// Upstream (authorization server) errors
	ErrUpstreamFailure = errors.New("authorization server failure")

	// Wiring errors
	ErrContractViolation = errors.New("handler invoked without a resolved principal")

	// Store errors
	ErrStateNotFound   = errors.New("pending auth state not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// General errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInternal      = errors.New("internal error")
)

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

// Join returns an error that wraps the given errors
func Join(errs ...error) error {
	return errors.Join(errs...)
}
