package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindDenied     Kind = "authorization_denied"
	KindInvariant  Kind = "invariant_violation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "uniqueness_conflict"
	KindIntegrity  Kind = "data_integrity_fault"
	KindInternal   Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

func Validation(message string) *Error { return New(KindValidation, message) }
func Denied(message string) *Error     { return New(KindDenied, message) }
func Invariant(message string) *Error  { return New(KindInvariant, message) }
func NotFound(message string) *Error   { return New(KindNotFound, message) }
func Conflict(message string) *Error   { return New(KindConflict, message) }
func Integrity(message string) *Error  { return New(KindIntegrity, message) }

// KindOf 对非 *Error 的错误一律视为内部错误
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
