package core

// These errors are what a caller sees.  Every failure path in this
// package produces an *Error.

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an Error.
type ErrorKind uint8

const (
	// UnknownReference: a Reference that isn't (or is no longer)
	// in the Cache.
	UnknownReference ErrorKind = iota + 1

	// SymbolNotFound: a segment of a global path doesn't exist.
	SymbolNotFound

	// TypeNotFound: a type name didn't resolve.
	TypeNotFound

	// NoSuchMethod: the target has no callable by that name.
	NoSuchMethod

	// ConstructionError: the host rejected a construction.
	ConstructionError

	// InvocationError: the invoked target raised.
	InvocationError

	// IndexOutOfRange: an array index outside [0,length).
	IndexOutOfRange

	// UnsupportedOperation: for example, Cast.
	UnsupportedOperation

	// MalformedCommand: wrong payload arity or shape for the
	// command's kind.
	MalformedCommand
)

var errorKindNames = map[ErrorKind]string{
	UnknownReference:     "UnknownReference",
	SymbolNotFound:       "SymbolNotFound",
	TypeNotFound:         "TypeNotFound",
	NoSuchMethod:         "NoSuchMethod",
	ConstructionError:    "ConstructionError",
	InvocationError:      "InvocationError",
	IndexOutOfRange:      "IndexOutOfRange",
	UnsupportedOperation: "UnsupportedOperation",
	MalformedCommand:     "MalformedCommand",
}

func (k ErrorKind) String() string {
	if s, have := errorKindNames[k]; have {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// ParseErrorKind is the inverse of ErrorKind.String.
func ParseErrorKind(s string) (ErrorKind, bool) {
	for k, name := range errorKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Error is the typed error value that crosses the interpreter
// boundary.
type Error struct {
	Kind ErrorKind

	// Msg is diagnostic text.  When Cause came from the host
	// runtime, Msg includes its message.
	Msg string

	// Cause is the underlying fault (if any).
	Cause error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same Kind, so
//
//	errors.Is(err, ErrKind(UnknownReference))
//
// works.
func (e *Error) Is(target error) bool {
	t, is := target.(*Error)
	if !is {
		return false
	}
	return t.Kind == e.Kind
}

// ErrKind returns a bare *Error suitable as an errors.Is target.
func ErrKind(k ErrorKind) error {
	return &Error{Kind: k}
}

// NewError makes an *Error with a formatted message.
func NewError(k ErrorKind, format string, args ...interface{}) *Error {
	return &Error{
		Kind: k,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Malformed is shorthand for a MalformedCommand error.
func Malformed(format string, args ...interface{}) *Error {
	return NewError(MalformedCommand, format, args...)
}

// Wrap converts an arbitrary error into an *Error of the given kind.
//
// An error that already is (or wraps) an *Error is returned as is:
// the adapter's classification wins.
func Wrap(k ErrorKind, err error, context string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	msg := err.Error()
	if context != "" {
		msg = context + ": " + msg
	}
	return &Error{
		Kind:  k,
		Msg:   msg,
		Cause: err,
	}
}

// KindOf returns the ErrorKind of err, or zero if err isn't an
// *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k ErrorKind) bool {
	return KindOf(err) == k
}
