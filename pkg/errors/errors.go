package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches any AppError carrying the same code, so sentinel values below
// work with errors.Is regardless of message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or
// ErrCodeBackend for anything else.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeBackend
}

// MessageOf returns a user-facing message for err.
func MessageOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return "something went wrong, please try again"
}

const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeSelfRequest      = "SELF_REQUEST"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeUnavailable      = "UNAVAILABLE"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeBackend          = "BACKEND_ERROR"
)

// Sentinels for errors.Is checks.
var (
	ErrNotFound         = New(ErrCodeNotFound, "not found")
	ErrSelfRequest      = New(ErrCodeSelfRequest, "you cannot request yourself")
	ErrAlreadyExists    = New(ErrCodeAlreadyExists, "already exists")
	ErrForbidden        = New(ErrCodeForbidden, "forbidden")
	ErrPermissionDenied = New(ErrCodePermissionDenied, "location permission denied")
	ErrUnavailable      = New(ErrCodeUnavailable, "location unavailable")
	ErrTimeout          = New(ErrCodeTimeout, "location request timed out")
)
