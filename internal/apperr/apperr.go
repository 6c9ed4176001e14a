package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an application error so handlers can translate it to an
// HTTP status without inspecting message text.
type Kind string

const (
	KindUnauthorized       Kind = "unauthorized"
	KindInvalidPayload     Kind = "invalid_payload"
	KindInvalidTech        Kind = "invalid_tech"
	KindAlreadyUnlocked    Kind = "already_unlocked"
	KindMaxed              Kind = "maxed"
	KindPrerequisiteNotMet Kind = "prerequisite_not_met"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindDepleted           Kind = "depleted"
	KindInternal           Kind = "internal"
)

// Error is the tagged failure value returned by every gameplay service.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// Detail carries extra response fields, e.g. available/required stardust
	// on an insufficient-funds rejection.
	Detail map[string]any
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

// New constructs a tagged error with a plain message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs a tagged error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying failure, typically a store error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Internal wraps a store or infrastructure failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// WithDetail attaches a response field to the error and returns it.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Detail == nil {
		e.Detail = make(map[string]any)
	}
	e.Detail[key] = value
	return e
}

// KindOf extracts the Kind from an error chain; unknown errors are internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// DetailOf extracts the detail map from an error chain, if any.
func DetailOf(err error) map[string]any {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Detail
	}
	return nil
}

// HTTPStatus maps an error kind to the status code the API surfaces.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidPayload, KindInvalidTech, KindPrerequisiteNotMet, KindInsufficientFunds:
		return http.StatusBadRequest
	case KindAlreadyUnlocked, KindMaxed, KindDepleted:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
