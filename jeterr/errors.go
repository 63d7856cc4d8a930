// Package jeterr defines the error kinds surfaced at jetdb's API boundary
// and a wrapper carrying page/table context alongside a cause.
package jeterr

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind sentinels. Use errors.Is(err, jeterr.CorruptedFormat) etc. against
// values returned by the engine; *Error.Unwrap() exposes the Kind and
// *Error.Cause() the wrapped cause.
var (
	CorruptedFormat           = stderrors.New("corrupted format")
	UnsupportedFormat         = stderrors.New("unsupported format")
	IoFailure                 = stderrors.New("i/o failure")
	UniquenessViolation       = stderrors.New("uniqueness violation")
	ReferentialIntegrityError = stderrors.New("referential integrity violation")
	AutoNumberConflict        = stderrors.New("auto-number conflict")
	ValueOutOfRange           = stderrors.New("value out of range")
	InvalidArgument           = stderrors.New("invalid argument")
	EOF                       = stderrors.New("eof")
	NotFound                  = stderrors.New("not found")
)

// Error wraps a Kind sentinel with free-form context (page number, table
// name,...) and an optional underlying cause, preserving a stack trace via
// github.com/pkg/errors so callers can both errors.Is against the Kind and
// print a full trace in diagnostics.
type Error struct {
	Kind    error
	Context string
	cause   error
}

func (e *Error) Error() string {
	if e.Context == "" {
		return e.Kind.Error()
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Error(), e.Context, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Context)
}

func (e *Error) Unwrap() error { return e.Kind }

func (e *Error) Cause() error { return e.cause }

// New builds an *Error of the given kind with a formatted context message
// and captures a stack trace (via pkg/errors) for diagnostics.
func New(kind error, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Context: fmt.Sprintf(format, args...)})
}

// Wrap attaches kind+context to an existing cause, keeping the cause
// reachable through Cause (and pkg/errors.Cause) while still matching
// errors.Is(kind).
func Wrap(cause error, kind error, format string, args ...interface{}) error {
	if cause == nil {
		return nil
	}
	return errors.WithStack(&Error{Kind: kind, Context: fmt.Sprintf(format, args...), cause: cause})
}

// Is reports whether err ultimately carries the given Kind sentinel.
func Is(err, kind error) bool {
	return stderrors.Is(err, kind)
}
