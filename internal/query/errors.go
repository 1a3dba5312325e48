package query

import (
	"errors"
	"fmt"
)

// Kind classifies a query or mutation failure so callers can map it to a
// response policy without string matching.
type Kind int

const (
	// KindTransport marks network or SDK-layer failures (timeouts, broken
	// connections, undecodable payloads).
	KindTransport Kind = iota + 1
	// KindValidation marks caller mistakes caught before any platform call,
	// typically by an enabled guard rejecting missing parameters.
	KindValidation
	// KindApplication marks domain-level failures surfaced by the platform
	// itself (not-found, conflict, quota).
	KindApplication
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

// Error is the failure shape stored on cache entries and delivered to
// mutation callbacks. Engine consumers check it via Result rather than
// recover from panics; the engine never throws across the hook boundary.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transportf builds a transport-kind error.
func Transportf(format string, args ...any) *Error {
	return &Error{Kind: KindTransport, Message: fmt.Sprintf(format, args...)}
}

// Validationf builds a validation-kind error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Applicationf builds an application-kind error.
func Applicationf(format string, args ...any) *Error {
	return &Error{Kind: KindApplication, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind from err, returning zero when err carries
// no classification.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return 0
}
