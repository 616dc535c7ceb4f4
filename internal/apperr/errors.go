// Package apperr holds the error kinds returned by the leave services.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation         Kind = "VALIDATION"
	KindNotFound           Kind = "NOT_FOUND"
	KindPermissionDenied   Kind = "PERMISSION_DENIED"
	KindAlreadyExists      Kind = "ALREADY_EXISTS"
	KindFailedPrecondition Kind = "FAILED_PRECONDITION"
	KindUnauthenticated    Kind = "UNAUTHENTICATED"
	KindInternal           Kind = "INTERNAL"
)

// Codes refining FAILED_PRECONDITION.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeOverlap           = "OVERLAP"
	CodeConcurrentLimit   = "CONCURRENT_LIMIT"
	CodeInsufficient      = "INSUFFICIENT_BALANCE"
	CodeHasDependents     = "HAS_DEPENDENTS"
	CodeInactiveUser      = "INACTIVE_USER"
)

// Error is a typed business error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error

	// Remaining is set for INSUFFICIENT_BALANCE.
	Remaining *float64
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind, so errors.Is(err, apperr.ErrNotFound) works
// for any NOT_FOUND error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message != "" || t.Code != "" {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrPermissionDenied   = &Error{Kind: KindPermissionDenied}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrFailedPrecondition = &Error{Kind: KindFailedPrecondition}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
)

func newf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return newf(KindValidation, "", format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(KindNotFound, "", format, args...)
}

func PermissionDenied(format string, args ...any) error {
	return newf(KindPermissionDenied, "", format, args...)
}

func AlreadyExists(format string, args ...any) error {
	return newf(KindAlreadyExists, "", format, args...)
}

func Unauthenticated(format string, args ...any) error {
	return newf(KindUnauthenticated, "", format, args...)
}

// FailedPrecondition builds a FAILED_PRECONDITION error with a refining code.
func FailedPrecondition(code, format string, args ...any) error {
	return newf(KindFailedPrecondition, code, format, args...)
}

// InsufficientBalance reports the hours still available.
func InsufficientBalance(remaining float64) error {
	e := newf(KindFailedPrecondition, CodeInsufficient,
		"insufficient annual leave balance: %.2f hours remaining", remaining)
	e.Remaining = &remaining
	return e
}

// Internal wraps an infrastructure failure.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf classifies err; untyped errors are INTERNAL.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the refining code, if any.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// RemainingHours extracts the remaining balance from an INSUFFICIENT_BALANCE error.
func RemainingHours(err error) (float64, bool) {
	var e *Error
	if errors.As(err, &e) && e.Remaining != nil {
		return *e.Remaining, true
	}
	return 0, false
}
