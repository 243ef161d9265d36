package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies errors for the transport layer
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindNotFound        ErrorKind = "not_found"
	KindAuthorization   ErrorKind = "authorization"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindConflict        ErrorKind = "conflict"
	KindInternal        ErrorKind = "internal"
)

// Error is a classified domain error
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if len(e.Fields) > 0 {
		msg = msg + ": " + strings.Join(e.Fields, "; ")
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors of the same kind and message so sentinel values work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// NewError builds a domain error
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation builds a ValidationError
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationFields builds a ValidationError carrying one message per invalid field
func ValidationFields(fields []string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// NotFound builds a NotFoundError
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden builds an AuthorizationError
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a ConflictError
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf classifies any error. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var bulk *BulkError
	if errors.As(err, &bulk) {
		return KindValidation
	}
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// ItemError reports a failure for one element of a bulk request
type ItemError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// BulkError aborts a whole batch and lists every failing item
type BulkError struct {
	Errors []ItemError
}

func (e *BulkError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		parts = append(parts, fmt.Sprintf("[%d] %s", item.Index, item.Message))
	}
	return "bulk operation aborted: " + strings.Join(parts, ", ")
}

// Add records a failing item
func (e *BulkError) Add(index int, err error) {
	msg := "internal error"
	var dErr *Error
	if errors.As(err, &dErr) {
		msg = dErr.Error()
		if dErr.Kind == KindInternal {
			msg = dErr.Message
		}
	}
	e.Errors = append(e.Errors, ItemError{Index: index, Message: msg})
}

// OrNil returns nil when no item failed
func (e *BulkError) OrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Common errors
var (
	ErrUnauthenticated    = NewError(KindUnauthenticated, "authentication required")
	ErrInvalidCredentials = NewError(KindUnauthenticated, "invalid email or password")
	ErrTokenExpired       = NewError(KindUnauthenticated, "token expired")
	ErrTokenInvalid       = NewError(KindUnauthenticated, "token invalid")
	ErrTokenRevoked       = NewError(KindUnauthenticated, "token revoked")
	ErrUserInactive       = NewError(KindAuthorization, "user account is inactive")
	ErrEmailTaken         = NewError(KindConflict, "email already registered")
	ErrProfileExists      = NewError(KindConflict, "member profile already exists")

	ErrUserNotFound    = NewError(KindNotFound, "user not found")
	ErrMemberNotFound  = NewError(KindNotFound, "member profile not found")
	ErrDueNotFound     = NewError(KindNotFound, "due not found")
	ErrLoanNotFound    = NewError(KindNotFound, "loan not found")
	ErrPaymentNotFound = NewError(KindNotFound, "payment not found")
	ErrReportNotFound  = NewError(KindNotFound, "report not found")

	ErrDueAlreadyDeleted = NewError(KindConflict, "due is already deleted")
	ErrDueNotDeleted     = NewError(KindConflict, "due is not deleted")
)

// RequireRole returns an AuthorizationError unless role is one of allowed
func RequireRole(role Role, allowed ...Role) error {
	for _, r := range allowed {
		if role == r {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, r := range allowed {
		names[i] = string(r)
	}
	return Forbidden("requires one of roles: %s", strings.Join(names, ", "))
}
