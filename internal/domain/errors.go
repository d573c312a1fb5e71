package domain

import (
	"errors"
	"fmt"
)

// Kind is a stable machine-readable error category. API callers receive the
// kind unchanged, so values here are part of the public contract.
type Kind string

const (
	KindInvalidSubmission Kind = "invalid_submission"
	KindInvalidTransition Kind = "invalid_transition"
	KindTerminalState     Kind = "terminal_state_violation"
	KindItemNotFound      Kind = "item_not_found"
	KindAlreadyResolved   Kind = "already_resolved"
	KindAlreadyQueued     Kind = "already_queued"
	KindNotFound          Kind = "not_found"
	KindUnavailable       Kind = "unavailable"
)

// Error carries a Kind plus a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

// E builds a kinded error.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, or "" if err is not a kinded error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
