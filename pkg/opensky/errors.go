package opensky

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies feed errors so callers can pick a retry strategy
// (and an HTTP status) without string matching.
type Kind int

const (
	// KindInvalidFormat is a malformed identifier or coordinate,
	// rejected before any network call. Never retried.
	KindInvalidFormat Kind = iota

	// KindNotFound is a well-formed identifier absent from the current
	// snapshot. The aircraft may simply not be airborne.
	KindNotFound

	// KindAuth is missing/invalid OAuth2 credentials or a failed token
	// exchange.
	KindAuth

	// KindUnavailable is a non-2xx feed response (beyond the one handled
	// 401 retry) or an unparseable body.
	KindUnavailable

	// KindTimeout is a feed or token call that exceeded its deadline,
	// kept distinct from KindUnavailable.
	KindTimeout
)

// Error is a classified feed error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
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

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the classification from err.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

func hasKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsInvalidFormat checks if an error is a format rejection.
func IsInvalidFormat(err error) bool { return hasKind(err, KindInvalidFormat) }

// IsNotFound checks if an error means the aircraft is not reporting.
func IsNotFound(err error) bool { return hasKind(err, KindNotFound) }

// IsAuthError checks if an error is a credential/token failure.
func IsAuthError(err error) bool { return hasKind(err, KindAuth) }

// IsUnavailable checks if an error is a feed availability failure.
func IsUnavailable(err error) bool { return hasKind(err, KindUnavailable) }

// IsTimeout checks if an error is a deadline failure.
func IsTimeout(err error) bool { return hasKind(err, KindTimeout) }

// isDeadlineError reports whether a transport error was caused by a
// timeout rather than a reachability problem.
func isDeadlineError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
