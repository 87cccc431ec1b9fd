package swaperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how a caller is expected to react to it.
type Kind uint8

const (
	// KindUnknown is reported for errors that did not originate from
	// this module.
	KindUnknown Kind = iota

	// KindValidation is a missing or malformed required input. It is
	// always fixable by the caller and never worth retrying.
	KindValidation

	// KindInvalidAddress is an address that cannot be classified.
	KindInvalidAddress

	// KindInvalidRedeemScript is a redeem script that does not match the
	// swap script template.
	KindInvalidRedeemScript

	// KindDerivationFailed is a failed key or script derivation.
	KindDerivationFailed

	// KindCacheWriteFailed is a failed write to the cache backend.
	KindCacheWriteFailed

	// KindCacheReadFailed is a failed read from the cache backend.
	KindCacheReadFailed
)

// String returns a human readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"

	case KindInvalidAddress:
		return "InvalidAddress"

	case KindInvalidRedeemScript:
		return "InvalidRedeemScript"

	case KindDerivationFailed:
		return "DerivationFailed"

	case KindCacheWriteFailed:
		return "CacheWriteFailed"

	case KindCacheReadFailed:
		return "CacheReadFailed"

	default:
		return "Unknown"
	}
}

// Error is a structured error with a stable kind and code. Two errors are
// considered equal by errors.Is when their kind and code match, so wrapped
// copies still compare equal to the exported sentinel they were created from.
type Error struct {
	// Kind is the class of the error.
	Kind Kind

	// Code is the stable identifier of the error, for example
	// ExpectedSwapElement.
	Code string

	// Err is the optional underlying cause.
	Err error
}

// New creates a new sentinel error.
func New(kind Kind, code string) *Error {
	return &Error{
		Kind: kind,
		Code: code,
	}
}

// Wrap returns a copy of the sentinel that carries the given cause.
func Wrap(sentinel *Error, cause error) error {
	return &Error{
		Kind: sentinel.Kind,
		Code: sentinel.Code,
		Err:  cause,
	}
}

// Wrapf returns a copy of the sentinel carrying a formatted cause.
func Wrapf(sentinel *Error, format string, args ...interface{}) error {
	return Wrap(sentinel, fmt.Errorf(format, args...))
}

// Error returns the error string.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}

	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target is an *Error with the same kind and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && t.Code == e.Code
}

// KindOf returns the kind of the first *Error found in the chain of err, or
// KindUnknown if there is none.
func KindOf(err error) Kind {
	var swapErr *Error
	if errors.As(err, &swapErr) {
		return swapErr.Kind
	}

	return KindUnknown
}

// CodeOf returns the code of the first *Error found in the chain of err, or
// an empty string if there is none.
func CodeOf(err error) string {
	var swapErr *Error
	if errors.As(err, &swapErr) {
		return swapErr.Code
	}

	return ""
}
