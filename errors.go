package imf

import (
	"errors"
	"fmt"
	"io"
)

// Kind classifies the error taxonomy described for the IMF playback engine:
// malformed input, allocation failure, propagated IO failure, an internal
// inconsistency between a track's cursor and its declared resources, or
// normal/cooperative completion.
type Kind int

const (
	// KindInvalidData covers XML structural/semantic violations, missing
	// required children, unparseable scalars, and an unresolved asset
	// reference.
	KindInvalidData Kind = iota
	// KindOutOfMemory covers allocation failure.
	KindOutOfMemory
	// KindIOError wraps a failure propagated verbatim from the IO layer
	// (the Opener or a child demuxer's own IO).
	KindIOError
	// KindStreamNotFound indicates a cursor inside a track's declared
	// duration for which no resource covers the timestamp — a malformed
	// CPL that escaped validation.
	KindStreamNotFound
	// KindEndOfStream indicates normal completion or cooperative
	// cancellation of a read.
	KindEndOfStream
)

func (k Kind) String() string {
	switch k {
	case KindInvalidData:
		return "invalid data"
	case KindOutOfMemory:
		return "out of memory"
	case KindIOError:
		return "io error"
	case KindStreamNotFound:
		return "stream not found"
	case KindEndOfStream:
		return "end of stream"
	default:
		return "unknown"
	}
}

// Error is the error type returned across the package's public surface. Op
// and Detail carry the diagnostic naming the offending document/element
// that the outer format surface's user-visible behavior requires.
type Error struct {
	Kind   Kind
	Op     string // operation in progress, e.g. "parse CPL", "read_packet"
	Detail string // offending document/element/track, free text
	Err    error  // wrapped cause, if any
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("imf: %s: %s (%s): %v", e.Op, e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("imf: %s: %s (%s)", e.Op, e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("imf: %s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("imf: %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so callers can
// write errors.Is(err, imf.ErrEndOfStream) against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels usable with errors.Is. Build a detailed instance with newErr;
// these only carry a Kind.
var (
	ErrInvalidData    = &Error{Kind: KindInvalidData}
	ErrOutOfMemory    = &Error{Kind: KindOutOfMemory}
	ErrIOError        = &Error{Kind: KindIOError}
	ErrStreamNotFound = &Error{Kind: KindStreamNotFound}
	ErrEndOfStream    = &Error{Kind: KindEndOfStream}
)

func newErr(kind Kind, op, detail string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: cause}
}

func invalidData(op, detail string, cause error) *Error {
	return newErr(KindInvalidData, op, detail, cause)
}

// asImfError normalizes an error from a collaborator (Opener, ChildDemuxer)
// into the package's taxonomy: io.EOF becomes EndOfStream, an already-typed
// *Error passes through, anything else is wrapped as an IOError.
func asImfError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, io.EOF) {
		return ErrEndOfStream
	}
	return newErr(KindIOError, op, "", err)
}
