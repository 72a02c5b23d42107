package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no photo has the requested id
	ErrNotFound = errors.New("photo not found")
	// ErrUnauthorized is returned for a missing or wrong credential, and
	// for every credential while the server secret is unset
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotConfigured is returned when the server secret is unset
	ErrNotConfigured = errors.New("server not configured")
	// ErrConflict is returned when another writer replaced the metadata
	// document between read and write
	ErrConflict = errors.New("photo collection was modified concurrently")
)

// ValidationError reports a missing or malformed request field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
