package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session layer
var (
	// Handshake errors
	ErrVerification  = errors.New("csrf verification failed")
	ErrStateMismatch = errors.New("state mismatch")
	ErrMissingCode   = errors.New("missing authorization code")
	ErrNoPending     = errors.New("no pending authorization")

	// Provider errors
	ErrDiscovery      = errors.New("provider discovery failed")
	ErrTokenExchange  = errors.New("token exchange failed")
	ErrMissingIDToken = errors.New("missing id_token")
	ErrUserinfo       = errors.New("userinfo request failed")
	ErrMissingSubject = errors.New("missing subject claim")

	// Refresh errors
	ErrRefresh        = errors.New("refresh failed")
	ErrNoRefreshToken = errors.New("no refresh token")

	// Session errors
	ErrInvalidSession = errors.New("invalid session")
	ErrNoAccessToken  = errors.New("no access token")

	// General errors
	ErrConfig = errors.New("invalid configuration")
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
