/*
Package errs provides custom error types and application-level error code constants.

This file defines the CustomError struct, which implements the standard Go error interface
and carries a business code, a classification Kind and a user-displayable message.
*/
package errs

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"chatline/internal/pkg/logx"
)

// Kind classifies a CustomError by how the caller is expected to recover from it.
type Kind int

const (
	// KindInternal is an unclassified failure.
	KindInternal Kind = iota

	// KindCommand is an invalid command shape or a business-rule violation.
	KindCommand

	// KindPermission means the caller lacks the role required for the action.
	KindPermission

	// KindForm is a credential or profile form failure.
	KindForm

	// KindAuth means the stored credential is missing or no longer accepted.
	KindAuth

	// KindTransport is a network fault.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindPermission:
		return "permission"
	case KindForm:
		return "form"
	case KindAuth:
		return "auth"
	case KindTransport:
		return "transport"
	default:
		return "internal"
	}
}

// CustomError is the error structure used throughout the application.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Kind is derived from the code range.
	Kind Kind

	// Message is the user-displayable description. It may contain <strong> markup.
	Message string

	// Cause is the underlying error, if any. It is never shown to the user.
	Cause error
}

// Error implements the standard Go error interface.
func (e *CustomError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Error Code %d (%s): %s: %v", e.Code, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("Error Code %d (%s): %s", e.Code, e.Kind, e.Message)
}

func (e *CustomError) Unwrap() error { return e.Cause }

// kindOfCode maps a code range to its Kind.
func kindOfCode(code int) Kind {
	switch code / 1000 {
	case 1:
		return KindCommand
	case 2:
		return KindPermission
	case 3:
		return KindForm
	case 4:
		return KindAuth
	case 5:
		if code == ErrUnknown {
			return KindInternal
		}
		return KindTransport
	default:
		return KindInternal
	}
}

// Bold escapes s for HTML and wraps it in <strong>.
func Bold(s string) string {
	return "<strong>" + html.EscapeString(s) + "</strong>"
}

// NewError constructs a new *CustomError based on a predefined error code.
// String details fill the %s verbs of the template and are emphasised with Bold, except for
// pass-through templates ("%s") which only escape the server-supplied text. If an unknown
// code is provided, it defaults to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]
	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)
		templateErr = errorMap[ErrUnknown]
		code = ErrUnknown
	}

	customErr := templateErr
	customErr.Kind = kindOfCode(code)

	if len(details) == 0 {
		return &customErr
	}

	if !strings.Contains(customErr.Message, "%") {
		logx.Warn(
			"Details provided for error, but message template has no formatting placeholders. Details ignored.",
			"code", code,
		)
		return &customErr
	}

	passThrough := customErr.Message == "%s"
	args := make([]any, len(details))
	for i, d := range details {
		s := fmt.Sprint(d)
		if passThrough {
			args[i] = html.EscapeString(s)
		} else {
			args[i] = Bold(s)
		}
	}
	customErr.Message = fmt.Sprintf(customErr.Message, args...)

	return &customErr
}

// Wrap is NewError with an attached cause.
func Wrap(code int, cause error, details ...any) *CustomError {
	e := NewError(code, details...)
	e.Cause = cause
	return e
}

// As extracts a *CustomError from err.
func As(err error) (*CustomError, bool) {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindInternal when err is not a CustomError.
func KindOf(err error) Kind {
	if customErr, ok := As(err); ok {
		return customErr.Kind
	}
	return KindInternal
}

// Is reports whether err is a CustomError with the given code.
func Is(err error, code int) bool {
	customErr, ok := As(err)
	return ok && customErr.Code == code
}

// Message returns the user-displayable message for err.
// Errors outside the taxonomy are reported with the generic ErrUnknown text.
func Message(err error) string {
	if customErr, ok := As(err); ok {
		return customErr.Message
	}
	return errorMap[ErrUnknown].Message
}

// TakesDetails reports whether the template for code has placeholders for details.
func TakesDetails(code int) bool {
	tmpl, ok := errorMap[code]
	return ok && strings.Contains(tmpl.Message, "%")
}
