// Package apierr defines the control plane's error taxonomy and the single
// place HTTP status codes are derived from an error's kind.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one of the error categories from the control plane's error
// taxonomy. Kinds, not Go types, are what callers switch on.
type Kind string

const (
	KindValidation      Kind = "ValidationError"
	KindRecipeNotFound  Kind = "RecipeNotFound"
	KindNotFound        Kind = "NotFound"
	KindInvalidTransition Kind = "InvalidTransition"
	KindNotReady        Kind = "NotReady"
	KindTunnelFailure   Kind = "TunnelFailure"
	KindAuthExpired     Kind = "AuthExpired"
	KindUpstreamFailure Kind = "UpstreamFailure"
	KindTimeout         Kind = "Timeout"
	KindAllReplicasDown Kind = "AllReplicasDown"
)

var statusByKind = map[Kind]int{
	KindValidation:        http.StatusBadRequest,
	KindRecipeNotFound:    http.StatusNotFound,
	KindNotFound:          http.StatusNotFound,
	KindInvalidTransition: http.StatusConflict,
	KindNotReady:          http.StatusConflict,
	KindTunnelFailure:     http.StatusBadGateway,
	KindAuthExpired:       http.StatusUnauthorized,
	KindUpstreamFailure:   http.StatusBadGateway,
	KindTimeout:           http.StatusGatewayTimeout,
	KindAllReplicasDown:   http.StatusServiceUnavailable,
}

// Error is the concrete error type carrying a Kind, a safe user-facing
// Detail, and an optional cause that is logged but never serialized.
type Error struct {
	Kind   Kind
	Detail string
	Status int
	// UpstreamStatus/UpstreamBody are populated for KindUpstreamFailure so callers can
	// surface the remote status and body without re-deriving them.
	UpstreamStatus int
	UpstreamBody   string
	cause          error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus returns the status code this error maps to.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New builds an *Error of the given kind with a safe detail message.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Status: statusByKind[kind]}
}

// Wrap builds an *Error of the given kind, attaching cause for logging only.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Status: statusByKind[kind], cause: cause}
}

// Upstream builds a KindUpstreamFailure error carrying the remote status/body.
func Upstream(statusCode int, body string) *Error {
	return &Error{
		Kind:           KindUpstreamFailure,
		Detail:         fmt.Sprintf("upstream returned status %d", statusCode),
		Status:         statusByKind[KindUpstreamFailure],
		UpstreamStatus: statusCode,
		UpstreamBody:   body,
	}
}

// As is a convenience wrapper over errors.As for *Error.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
