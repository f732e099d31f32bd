package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Validation              Kind = "validation"
	Conflict                Kind = "conflict"
	NotFound                Kind = "not_found"
	Gateway                 Kind = "gateway"
	GatewayTimeout          Kind = "gateway_timeout"
	Verification            Kind = "verification"
	VerificationUnavailable Kind = "verification_unavailable"
	PreconditionFailed      Kind = "precondition_failed"
	Internal                Kind = "internal"
)

// Error membawa kind (untuk status HTTP), code stabil untuk client,
// pesan publik, dan cause internal (untuk log).
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Wrap returns a copy of e with cause attached. The sentinel stays reachable
// through errors.Is because the copy unwraps to both.
func (e *Error) Wrap(cause error) error {
	return &wrapped{base: Error{Kind: e.Kind, Code: e.Code, Msg: e.Msg, Err: cause}, sentinel: e}
}

// Withf is like Wrap but replaces the public message.
func (e *Error) Withf(format string, args ...any) error {
	return &wrapped{base: Error{Kind: e.Kind, Code: e.Code, Msg: fmt.Sprintf(format, args...)}, sentinel: e}
}

type wrapped struct {
	base     Error
	sentinel *Error
}

func (w *wrapped) Error() string { return w.base.Error() }

func (w *wrapped) Unwrap() []error {
	if w.base.Err == nil {
		return []error{w.sentinel}
	}
	return []error{w.sentinel, w.base.Err}
}

func As(err error) (*Error, bool) {
	var w *wrapped
	if errors.As(err, &w) {
		return &w.base, true
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func HTTPStatus(err error) int {
	ae, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case Validation, Verification:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict, PreconditionFailed:
		return http.StatusConflict
	case GatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func Code(err error) string {
	if ae, ok := As(err); ok && ae.Code != "" {
		return ae.Code
	}
	return "internal_error"
}

func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.Msg != "" {
		return ae.Msg
	}
	return "unexpected error"
}
