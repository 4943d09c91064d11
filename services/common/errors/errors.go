package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind is the stable, client-visible classification of an operational error.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindItemNotFound     Kind = "item_not_found"
	KindInvalidSignature Kind = "invalid_signature"
	KindEmptyCart        Kind = "empty_cart"
	KindUpstream         Kind = "upstream"
	KindUnauthorized     Kind = "unauthorized"
	KindForbidden        Kind = "forbidden"
	KindConflict         Kind = "conflict"
	KindInternal         Kind = "internal"
)

// Error represents an operational application error
type Error struct {
	Code    int    `json:"-"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func Validation(message string, err error) *Error {
	return New(http.StatusBadRequest, KindValidation, message, err)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, KindNotFound, message, nil)
}

func ItemNotFound(message string) *Error {
	return New(http.StatusNotFound, KindItemNotFound, message, nil)
}

func InvalidSignature(err error) *Error {
	return New(http.StatusBadRequest, KindInvalidSignature, "Webhook signature verification failed", err)
}

func EmptyCart(message string) *Error {
	return New(http.StatusBadRequest, KindEmptyCart, message, nil)
}

// Upstream marks a failure of the store or the payment provider. Timeouts become 503
// so clients know the request may be retried.
func Upstream(message string, err error) *Error {
	code := http.StatusBadGateway
	if stderrors.Is(err, context.DeadlineExceeded) {
		code = http.StatusServiceUnavailable
	}
	return New(code, KindUpstream, message, err)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, KindUnauthorized, message, nil)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, KindForbidden, message, nil)
}

func Conflict(message string, err error) *Error {
	return New(http.StatusConflict, KindConflict, message, err)
}

func Internal(message string, err error) *Error {
	return New(http.StatusInternalServerError, KindInternal, message, err)
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for non-operational errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
