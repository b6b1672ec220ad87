/*
Package errs provides custom error types and application-level error code constants.

This file defines the CustomError struct, which implements the standard Go error interface
and includes a business code, a user-friendly message, an HTTP status code and, for validation
failures, the per-field messages reported by the remote service.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"nyscmate/internal/pkg/logx"
)

// FieldError is one field-level validation message, passed through verbatim from the remote service.
type FieldError struct {
	// Field is the offending input name (e.g. "password"). Empty when the remote did not say.
	Field string `json:"field,omitempty"`

	// Message is the human readable reason.
	Message string `json:"msg"`
}

// CustomError is the custom error structure used throughout the application.
// It wraps the Go error interface, adding a business code and HTTP status code.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-friendly error description.
	Message string

	// Status is the standard HTTP status code corresponding to this error.
	Status int

	// Fields carries field-level validation messages (ValidationFailed / ValidationRejected only).
	Fields []FieldError

	// retry marks an error the user may resolve by repeating the same action.
	retry bool

	// cause is the underlying error, if any.
	cause error
}

// Error implements the standard Go error interface. It returns a formatted
// error string containing the error code, HTTP status, and message.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e CustomError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a CustomError with the same code.
func (e CustomError) Is(target error) bool {
	var t *CustomError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Retryable reports whether repeating the action may succeed. Transient pipeline failures
// are always retryable; AuthErrors never are.
func (e CustomError) Retryable() bool {
	if e.retry {
		return true
	}
	switch e.Code {
	case ErrTimeout, ErrServiceUnavailable, ErrRateLimitExceeded, ErrUnknown:
		return true
	}
	return false
}

// NewError constructs and returns a new *CustomError instance based on a predefined error code.
// The optional details parameter allows for formatting arguments (printf-style) to be supplied
// for the error message. If an unknown code is provided, it defaults to returning ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &CustomError{
			Code:    unknownErr.Code,
			Message: unknownErr.Message,
			Status:  unknownErr.Status,
		}
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusInternalServerError
	}

	if code == ErrUnknown && len(details) > 0 {
		if originalErr, ok := details[0].(error); ok {
			logx.Debug("Handling ErrUnknown with underlying error", "error", originalErr.Error())
			customErr.cause = originalErr
		}
	} else if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn(
				"Details provided for error, but message template has no formatting placeholders. Details ignored.",
				"code", code,
			)
		}
	}

	return &customErr
}

// Wrap builds the error for code and records cause as its underlying error.
func Wrap(code int, cause error, details ...any) *CustomError {
	e := NewError(code, details...)
	e.cause = cause
	return e
}

// WithMessage returns a copy of e carrying msg verbatim (remote "detail" strings).
func (e *CustomError) WithMessage(msg string) *CustomError {
	c := *e
	if msg != "" {
		c.Message = msg
	}
	return &c
}

// WithFields returns a copy of e carrying the given field messages.
func (e *CustomError) WithFields(fields ...FieldError) *CustomError {
	c := *e
	c.Fields = append([]FieldError(nil), fields...)
	return &c
}

// AsRetryable returns a copy of e marked retryable regardless of its code.
func (e *CustomError) AsRetryable() *CustomError {
	c := *e
	c.retry = true
	return &c
}

// From extracts a *CustomError from err. Errors of any other type become ErrUnknown wrapping err.
func From(err error) *CustomError {
	if err == nil {
		return nil
	}
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce
	}
	return Wrap(ErrUnknown, err)
}

// IsCode reports whether err carries the given business code anywhere in its chain.
func IsCode(err error, code int) bool {
	var ce *CustomError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == code
}

// FieldMessages joins the field messages with ", ", as the signup form shows them.
func (e *CustomError) FieldMessages() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, ", ")
}
