package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned when the caller supplied missing or invalid input.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a resource ID does not resolve.
type NotFoundError struct {
	Err error
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{errors.New(msg)}
}

func (err NotFoundError) Error() string { return err.Err.Error() }

// ForbiddenError is returned when an authenticated caller is not permitted to act on a resource.
type ForbiddenError struct {
	Err error
}

func NewForbiddenError(msg string) error {
	return &ForbiddenError{errors.New(msg)}
}

func (err ForbiddenError) Error() string { return err.Err.Error() }

// ConflictError is returned when a write collides with an existing row (duplicate enrollment, submission, code...).
type ConflictError struct {
	Err error
}

func NewConflictError(msg string) error {
	return &ConflictError{errors.New(msg)}
}

func (err ConflictError) Error() string { return err.Err.Error() }

// ErrForbidden is the generic "no relation to this resource" error.
var ErrForbidden = NewForbiddenError("permission denied")

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
