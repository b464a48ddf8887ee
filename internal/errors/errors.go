package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Authentication errors
	ErrUnauthenticated    = errors.New("authorization required")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Identity provider errors
	ErrNotConfigured = errors.New("identity provider is not configured")
	ErrProvider      = errors.New("identity provider error")
	ErrRefresh       = errors.New("failed to refresh token")
	ErrUserInfo      = errors.New("failed to get user information")

	// Orchestration errors
	ErrInvalidTarget        = errors.New("invalid service or url")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrForbidden            = errors.New("no management permissions")
)

// UpstreamError is a non-2xx answer from a managed endpoint.
type UpstreamError struct {
	Service    string
	URL        string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
}

// Is makes a 403 from an endpoint match ErrForbidden.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrForbidden && e.StatusCode == http.StatusForbidden
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
