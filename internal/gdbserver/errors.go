package gdbserver

import "github.com/pkg/errors"

// Kind classifies the error taxonomy of spec.md §7. It exists for logging
// and metrics labeling; the wire-level consequence of each kind (E01, empty
// packet, detach, process abort) is decided at the call site, not derived
// generically from Kind.
type Kind int

const (
	// KindBadClient: framing/checksum failure. Recovered inside package
	// rsp itself (nack + retransmit); surfaced here only for logging.
	KindBadClient Kind = iota
	// KindPeerClosed: socket EOF/EPIPE. Not fatal; session detaches.
	KindPeerClosed
	// KindBadCommand: unrecognized first command byte or q/Q sub-token.
	KindBadCommand
	// KindBadRequest: malformed arguments, out-of-range register index,
	// unsupported breakpoint length.
	KindBadRequest
	// KindAccessFault: memory read/write denied by the access predicate.
	KindAccessFault
	// KindInternal: invariant violation. Fatal by design (spec.md §7).
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindBadClient:
		return "bad_client"
	case KindPeerClosed:
		return "peer_closed"
	case KindBadCommand:
		return "bad_command"
	case KindBadRequest:
		return "bad_request"
	case KindAccessFault:
		return "access_fault"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// sessionError pairs a Kind with the underlying cause, for structured
// logging at the point an RSP handler gives up on a request.
type sessionError struct {
	Kind Kind
	Err  error
}

func (e *sessionError) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *sessionError) Unwrap() error { return e.Err }

func badRequest(format string, args ...interface{}) *sessionError {
	return &sessionError{Kind: KindBadRequest, Err: errors.Errorf(format, args...)}
}

func accessFault(format string, args ...interface{}) *sessionError {
	return &sessionError{Kind: KindAccessFault, Err: errors.Errorf(format, args...)}
}

// internalInvariant logs and panics: spec.md §7 says invariant violations
// "surface as a simulator panic; the process aborts with a diagnostic."
// Callers use this only for conditions that indicate simulator corruption,
// never for ordinary client-facing errors.
func (s *Session) internalInvariant(format string, args ...interface{}) {
	err := errors.Errorf(format, args...)
	s.log.WithField("kind", KindInternal.String()).Panic(err)
}
