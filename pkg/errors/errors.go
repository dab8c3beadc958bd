package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// Domain errors surfaced by the lifecycle controllers.
	ErrNameTaken        = New("NAME_TAKEN", http.StatusConflict, "name already in use")
	ErrEmailTaken       = New("EMAIL_TAKEN", http.StatusConflict, "email already in use")
	ErrDeadlineClosed   = New("DEADLINE_CLOSED", http.StatusConflict, "deadline has passed and late submissions are not allowed")
	ErrAlreadyGraded    = New("ALREADY_GRADED", http.StatusConflict, "submission already graded")
	ErrResubmitDisabled = New("RESUBMIT_DISABLED", http.StatusConflict, "resubmission is not allowed for this assignment")
	ErrGradeOutOfRange  = New("GRADE_OUT_OF_RANGE", http.StatusBadRequest, "grade must be between 2.00 and 6.00")
	ErrSyncIncomplete   = New("SYNC_INCOMPLETE", http.StatusInternalServerError, "entity saved but related records could not all be updated")
)

// ErrCacheMiss signals a cache lookup that found nothing. It is a plain
// sentinel, not an HTTP-mapped error.
var ErrCacheMiss = errors.New("cache miss")

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
