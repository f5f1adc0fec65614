// Package apperror defines the domain error vocabulary shared across the
// service and handler layers. Services return these; handlers translate them
// to HTTP status codes with errors.Is/As, so no layer below HTTP ever knows
// about status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
)

// AppError carries a sentinel plus a human-readable message.
type AppError struct {
	Err     error  // sentinel category, matched with errors.Is
	Message string // human-readable description
	Field   string // optional: the field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports that the named resource does not exist.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// ValidationFailed reports that a request field failed validation.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}
