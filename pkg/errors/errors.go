// Package errors defines the error type that crosses from the store and the
// domain into HTTP responses. An AppError knows its status code and the
// messages a client is allowed to see; everything else stays in the logs.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "VALIDATION"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeConflict    ErrorType = "CONFLICT"
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	ErrorTypeDatabase    ErrorType = "DATABASE"
)

// Messages for errors whose details must not leak to clients
const (
	msgInternal    = "Internal server error"
	msgUnavailable = "Service unavailable"
)

// AppError is an error with an HTTP status and a client-facing body.
// Message and Cause are for logs; Public is what goes into {"errors":[...]}.
type AppError struct {
	Type       ErrorType
	Message    string
	Public     []string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of e wrapping err. Sentinels stay untouched.
func (e *AppError) WithCause(err error) *AppError {
	c := *e
	c.Cause = err
	return &c
}

// WithPublic returns a copy of e reporting messages to the client
func (e *AppError) WithPublic(messages ...string) *AppError {
	c := *e
	c.Public = messages
	return &c
}

func newError(t ErrorType, status int, message string, public ...string) *AppError {
	return &AppError{Type: t, Message: message, Public: public, HTTPStatus: status}
}

// NewValidationError reports bad input; the message is shown to the client
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, message)
}

// NewNotFoundError reports a missing resource, e.g. "Profile not found"
func NewNotFoundError(resource string) *AppError {
	message := resource + " not found"
	return newError(ErrorTypeNotFound, http.StatusNotFound, message, sentence(message))
}

// NewConflictError reports a write that clashes with existing state
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message, sentence(message))
}

// NewInternalError reports a failure the client cannot act on
func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, msgInternal)
}

// NewUnavailableError reports a dependency that is down or shedding load
func NewUnavailableError(dependency string) *AppError {
	return newError(ErrorTypeUnavailable, http.StatusServiceUnavailable,
		fmt.Sprintf("%s is unavailable", dependency), msgUnavailable)
}

// NewDatabaseError reports an unclassified store failure for operation
func NewDatabaseError(operation string, err error) *AppError {
	e := newError(ErrorTypeDatabase, http.StatusInternalServerError,
		fmt.Sprintf("database operation %s failed", operation), msgInternal)
	e.Cause = err
	return e
}

// As returns the first AppError in err's chain, or nil
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := As(err)
	return appErr != nil && appErr.Type == errType
}

func IsNotFound(err error) bool    { return IsType(err, ErrorTypeNotFound) }
func IsValidation(err error) bool  { return IsType(err, ErrorTypeValidation) }
func IsConflict(err error) bool    { return IsType(err, ErrorTypeConflict) }
func IsUnavailable(err error) bool { return IsType(err, ErrorTypeUnavailable) }

// HTTPStatus returns the status an error should be reported with
func HTTPStatus(err error) int {
	status, _ := Response(err)
	return status
}

// Response returns the status and client messages for err. Errors that are
// not AppErrors are internal.
func Response(err error) (int, []string) {
	appErr := As(err)
	if appErr == nil || appErr.HTTPStatus == 0 {
		return http.StatusInternalServerError, []string{msgInternal}
	}
	if len(appErr.Public) == 0 {
		return appErr.HTTPStatus, []string{http.StatusText(appErr.HTTPStatus)}
	}
	return appErr.HTTPStatus, appErr.Public
}

// Wrap adds context to err. AppErrors keep their type, status and client
// messages; anything else becomes an internal error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr := As(err); appErr != nil {
		return &AppError{
			Type:       appErr.Type,
			Message:    fmt.Sprintf("%s: %s", message, appErr.Message),
			Public:     appErr.Public,
			HTTPStatus: appErr.HTTPStatus,
			Cause:      err,
		}
	}

	return NewInternalError(message).WithCause(err)
}

func sentence(s string) string {
	s = strings.TrimSpace(s)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
