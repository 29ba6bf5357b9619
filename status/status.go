// Package status contains the error taxonomy shared by every gomoc package.
// Errors are *Error values tagged with a Code, so callers can branch with
// errors.Is(err, status.ErrNotFound) or recover the code with CodeOf.
package status

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code int

const (
	OK Code = iota
	// InvalidArgument means malformed or out-of-range caller input.
	InvalidArgument
	// InvalidState means an operation was called in the wrong lifecycle
	// phase.
	InvalidState
	// NotFound means an id did not refer to an existing entity.
	NotFound
	// NumericFailure means NaN, Inf or a negative flux appeared during a
	// sweep.
	NumericFailure
	// ConvergenceFailure means the iteration cap was reached.
	ConvergenceFailure
	// Aborted means a run was cancelled between sweeps.
	Aborted
	// Unknown is returned by CodeOf for errors from outside gomoc.
	Unknown
)

var codeNames = []string{
	"OK", "InvalidArgument", "InvalidState", "NotFound",
	"NumericFailure", "ConvergenceFailure", "Aborted", "Unknown",
}

func (c Code) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return fmt.Sprintf("Code(%d)", int(c))
	}
	return codeNames[c]
}

// Error is a message tagged with a Code.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Is reports whether target is an *Error with the same Code. This lets the
// Err* sentinels match any error of their class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for use with errors.Is.
var (
	ErrInvalidArgument    = &Error{InvalidArgument, "gomoc: invalid argument"}
	ErrInvalidState       = &Error{InvalidState, "gomoc: invalid state"}
	ErrNotFound           = &Error{NotFound, "gomoc: not found"}
	ErrNumericFailure     = &Error{NumericFailure, "gomoc: numeric failure"}
	ErrConvergenceFailure = &Error{ConvergenceFailure, "gomoc: convergence failure"}
	ErrAborted            = &Error{Aborted, "gomoc: aborted"}
)

// Errorf creates an *Error with the given code and a formatted message.
func Errorf(code Code, format string, args ...interface{}) error {
	return &Error{code, fmt.Sprintf(format, args...)}
}

// CodeOf returns the Code carried by err. nil maps to OK and errors which
// were not created by this package map to Unknown.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}
