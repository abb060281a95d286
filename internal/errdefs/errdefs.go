// Package errdefs defines a small vocabulary of sentinel errors shared across
// rockslide's internal packages, plus helpers for joining a sentinel with a
// more specific cause so callers can errors.Is against the sentinel while
// still seeing the underlying detail.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals that the requested object doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidParameter signals that the caller's input is invalid.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrConflict signals that some internal state conflicts with the
	// requested action and can't be performed right now.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized signals that the request carries no valid credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden signals that the credentials are valid but lack the
	// permission the action requires.
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable signals that the requested subsystem is not available.
	ErrUnavailable = errors.New("unavailable")

	// ErrSystem signals that some internal error occurred, e.g. a storage
	// backend or container engine failure unrelated to caller input.
	ErrSystem = errors.New("system error")

	// ErrNotImplemented signals that the requested action is not implemented.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedFeature signals that the request uses a distribution-spec
	// feature this registry deliberately does not implement (e.g. chunked
	// uploads, or a final chunk sent with the finalize request).
	ErrUnsupportedFeature = errors.New("unsupported feature")

	// ErrDigestMismatch signals that content written to the store does not
	// hash to the digest that was declared for it.
	ErrDigestMismatch = errors.New("digest mismatch")

	// ErrAlreadyExists signals that the resource already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrCanceled signals that the action was canceled by its caller.
	ErrCanceled = errors.New("canceled")
)

// Newf joins base with a formatted error, so errors.Is(result, base) holds
// while the message still carries the formatted detail.
func Newf(base error, format string, args ...any) error {
	return errors.Join(base, fmt.Errorf(format, args...))
}

// NewE joins base with err. If err is nil, or already wraps base, err is
// returned unchanged.
func NewE(base error, err error) error {
	if err == nil || errors.Is(err, base) {
		return err
	}
	return errors.Join(base, err)
}
