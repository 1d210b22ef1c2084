package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidSession is returned for a missing, forged, expired or revoked session.
	ErrInvalidSession = errors.New("invalid or expired session")

	// ErrRequestInFlight is returned while an earlier request with the same
	// idempotency key has not finished.
	ErrRequestInFlight = errors.New("a request with this idempotency key is in progress")

	// ErrUploadsDisabled is returned when a photo is sent but no media store is configured.
	ErrUploadsDisabled = errors.New("photo uploads are disabled")

	// ErrInvalidState is returned when an OAuth callback carries an unknown state.
	ErrInvalidState = errors.New("invalid oauth state")

	// ErrOAuthDisabled is returned when Google sign-in is not configured.
	ErrOAuthDisabled = errors.New("google sign-in is not configured")
)

// ValidationError lists invalid input fields and why.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid fields: " + strings.Join(names, ", ")
}

// required returns a ValidationError naming every empty value, or nil.
func required(fields map[string]string) error {
	missing := map[string]string{}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing[name] = "is required"
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Fields: missing}
}
