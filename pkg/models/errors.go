package models

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable means the shift/employee data source could not be read
// or written. The whole operation must be retried.
var ErrUpstreamUnavailable = errors.New("upstream data source unavailable")

// ValidationError rejects a request before any computation happens
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a single field
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
