package errors

import (
	"errors"
	"fmt"
)

var (
	// Platform adapter errors
	ErrPlatformValidation = errors.New("platform validation failed")
	ErrPlatformInit       = errors.New("platform initialization failed")
	ErrPlatformSync       = errors.New("platform sync failed")
	ErrPlatformDeploy     = errors.New("platform deployment failed")

	// Session errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionInactive  = errors.New("session is not active")
	ErrPermissionDenied = errors.New("permission denied")

	// Request errors
	ErrInvalidToken     = errors.New("invalid session token")
	ErrMalformedRequest = errors.New("malformed request")

	// General errors
	ErrInternal = errors.New("internal error")
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

// IsPlatform reports whether err came from a platform adapter.
func IsPlatform(err error) bool {
	return errors.Is(err, ErrPlatformValidation) ||
		errors.Is(err, ErrPlatformInit) ||
		errors.Is(err, ErrPlatformSync) ||
		errors.Is(err, ErrPlatformDeploy)
}
