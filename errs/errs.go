// Package errs implements the one sum-type error result Design Notes §9
// asks for in place of the source's mix of -1/errno/0 returns: every
// failure the core reports carries one of the six kinds from spec.md §7,
// wrapped with github.com/pkg/errors so a cause chain survives up to the
// façade.
package errs

import "github.com/pkg/errors"

// Kind is one of the six error categories spec.md §7 defines.
type Kind int

const (
	KindIO Kind = iota
	KindParse
	KindConflict
	KindChecksumMismatch
	KindScriptFailure
	KindResourceLimit
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindParse:
		return "parse"
	case KindConflict:
		return "conflict"
	case KindChecksumMismatch:
		return "checksum-mismatch"
	case KindScriptFailure:
		return "script-failure"
	case KindResourceLimit:
		return "resource-limit"
	default:
		return "unknown"
	}
}

// Error is a Kind-tagged error. Use New or Wrap to build one; use Cause to
// recover the Kind of an error that may have been wrapped further by
// github.com/pkg/errors along the way.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.err }

// New builds a Kind-tagged error with no further cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, msg: msg}
}

// Wrap tags err with kind and a message, preserving err as the cause.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, msg: msg, err: errors.WithMessage(err, msg)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, msg: errors.Errorf(format, args...).Error(), err: errors.Wrapf(err, format, args...)}
}

// KindOf walks err's cause chain and returns the first Kind found, and
// whether one was found at all.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		cause := errors.Unwrap(err)
		if cause == nil {
			break
		}
		err = cause
	}
	return 0, false
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
