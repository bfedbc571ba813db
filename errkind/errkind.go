// Package errkind implements the error taxonomy of spec.md §7: a small
// set of error kinds (not Go types) that every layer classifies errors
// into, so that Session/Job/Transfer can decide retry vs. surface
// without re-deriving the decision at each level. Mirrors the
// shouldRetry/fserrors.ShouldRetry classification pattern in the
// teacher's backend/ftp/ftp.go.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is one of the six error kinds from spec.md §7.
type Kind int

const (
	// TransientNetwork: connect refused/reset, EAGAIN at steady state,
	// TRY_AGAIN, 4xx, "try again later" protocol messages.
	TransientNetwork Kind = iota
	// PermanentProtocol: 5xx (non-transient), unknown required feature,
	// unsupported restart when required.
	PermanentProtocol
	// FatalLocal: bind failure, local file-open failure, disk-full when
	// configured fatal.
	FatalLocal
	// Auth: credential rejection (some host regexes reclassify as
	// TransientNetwork instead, per spec.md §4.5/§7).
	Auth
	// Cancellation: user-initiated (SIGINT propagation); not an error.
	Cancellation
	// Integrity: verify-phase hash mismatch.
	Integrity
)

func (k Kind) String() string {
	switch k {
	case TransientNetwork:
		return "transient-network"
	case PermanentProtocol:
		return "permanent-protocol"
	case FatalLocal:
		return "fatal-local"
	case Auth:
		return "auth"
	case Cancellation:
		return "cancellation"
	case Integrity:
		return "integrity"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind, the path that triggered
// it, the command attempted, and the server's verbatim reply line when
// available — spec.md §7's "Propagation policy" preservation list.
type Error struct {
	Kind    Kind
	Path    string
	Command string
	Reply   string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s]", e.Kind)
	if e.Command != "" {
		msg += " " + e.Command
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Reply != "" {
		msg += " (reply: " + e.Reply + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error.
func New(kind Kind, path, command, reply string, err error) *Error {
	return &Error{Kind: kind, Path: path, Command: command, Reply: reply, Err: err}
}

// Retriable reports whether an error of this kind should be retried
// locally with backoff, per spec.md §7: only TransientNetwork is
// retried unconditionally; Auth is retried only when a caller has
// already reclassified it (callers do that by constructing a
// TransientNetwork Error instead).
func Retriable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == TransientNetwork
	}
	return false
}

// Fatal reports whether err should abort the owning Job without retry.
func Fatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == FatalLocal
	}
	return false
}

// Of extracts the Kind of err, defaulting to PermanentProtocol for
// errors that were never classified (a conservative default: don't
// retry something we don't understand).
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return PermanentProtocol
}
