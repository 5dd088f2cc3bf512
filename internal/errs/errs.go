// Package errs provides the structured error type shared across the core's
// components. It collapses the four error categories the spec distinguishes
// (input, store, invariant, numerical edge case) into one type with a Code
// field, rather than four separate hierarchies.
package errs

import "fmt"

// Code classifies an Error into one of the categories the spec requires
// distinguishing at the call boundary.
type Code string

const (
	// CodeInput marks a malformed or out-of-contract caller argument:
	// empty dataset name, nil column, mismatched lengths.
	CodeInput Code = "INPUT"
	// CodeStore marks a failure reading or writing the anchor store or
	// evidence log: missing file, permission error, unreadable shard.
	CodeStore Code = "STORE"
	// CodeInvariant marks a state the core's own invariants forbid: an
	// illegal state transition, a duplicate anchor id collision.
	CodeInvariant Code = "INVARIANT"
	// CodeNumeric marks a numerical edge case the spec calls out
	// explicitly: empty samples, zero variance, degenerate distributions.
	CodeNumeric Code = "NUMERIC"
	// CodeInternal marks anything uncategorized, mirroring the teacher's
	// fallback INTERNAL_ERROR code.
	CodeInternal Code = "INTERNAL"
)

// Error is the structured error type returned by every exported operation.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an *Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches context and a code to an existing error, preserving it as
// Cause. A nil err returns nil, so call sites can do `return errs.Wrap(...)`
// unconditionally after an `if err != nil` body.
func Wrap(code Code, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf wraps err with a formatted message.
func Wrapf(code Code, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(code, err, fmt.Sprintf(format, args...))
}

// Is reports whether err is an *Error of the given code.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}

// CodeOf returns the code of err if it is an *Error, CodeInternal otherwise.
func CodeOf(err error) Code {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeInternal
}

// Input constructs a CodeInput error.
func Input(format string, args ...interface{}) *Error {
	return Newf(CodeInput, format, args...)
}

// Store constructs a CodeStore error.
func Store(format string, args ...interface{}) *Error {
	return Newf(CodeStore, format, args...)
}

// Invariant constructs a CodeInvariant error.
func Invariant(format string, args ...interface{}) *Error {
	return Newf(CodeInvariant, format, args...)
}

// Numeric constructs a CodeNumeric error.
func Numeric(format string, args ...interface{}) *Error {
	return Newf(CodeNumeric, format, args...)
}
