// Package clerr defines the error taxonomy shared across clade's components.
//
// Errors are comparable sentinel kinds wrapped with context via fmt.Errorf's
// %w, so callers use errors.Is against the Kind sentinels and errors.As
// against *Error when they need the wrapped detail.
package clerr

import (
	"errors"
	"fmt"
)

// Kind is a comparable error category. Behaviour, not identity, is what
// callers branch on.
type Kind string

const (
	NotFound   Kind = "not_found"
	Conflict   Kind = "conflict"
	Validation Kind = "validation"
	StoreErr   Kind = "store"
	CLIErr     Kind = "cli"
	IPCErr     Kind = "ipc"
	Background Kind = "background"
)

// Error pairs a Kind with a message and optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the same Kind, so errors.Is(err, clerr.NotFound)
// works directly against a Kind value.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Kind sentinels also implement error so they can be compared with errors.Is
// without constructing an *Error (e.g. `errors.New` style call sites).
func (k Kind) Error() string { return string(k) }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFoundf(format string, args ...any) error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

func Validationf(format string, args ...any) error {
	return New(Validation, fmt.Sprintf(format, args...))
}

// KindOf returns the Kind of err if it (or something it wraps) is a *Error,
// and Background otherwise — background paths default to logged-and-swallowed.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Background
}
