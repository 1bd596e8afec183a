package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)

// AppError carries a sentinel for errors.Is checks, a human-readable message
// safe to show to the user, and the field that caused the problem (for
// validation and conflict errors, where the caller needs to know whether the
// handle or the email was at fault).
type AppError struct {
	Err     error  // sentinel (ErrNotFound, ErrConflict, ...)
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, key),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation on the named field.
// The message is user-facing ("Username already taken", "Email already
// registered"), so callers pass the final wording, not a format template.
func Conflict(field, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
		Field:   field,
	}
}

// Unavailable reports that a dependency (store or identity provider) could
// not be reached. Availability checks treat this as "taken" — fail closed.
func Unavailable(message string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: message,
	}
}

// ConflictField returns the conflicting field name if err is (or wraps) a
// conflict AppError, and "" otherwise.
func ConflictField(err error) string {
	var ae *AppError
	if errors.As(err, &ae) && errors.Is(ae.Err, ErrConflict) {
		return ae.Field
	}
	return ""
}
