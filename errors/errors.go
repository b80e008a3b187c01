package errors

import (
	stderrors "errors"
	"fmt"
)

// TransportError represents errors that occur at the transport layer
type TransportError int

const (
	DnsFailure TransportError = iota
	SocketCreateFailure
	SocketConnectFailure
	SocketWriteFailure
	SocketReadFailure
	ConnectionClosed
	ConnectionReset
	SocketCloseFailure
	InitFailure
	Timeout
	IoUringInit
	IoUringSubmit
	Unsupported
)

func (e TransportError) Error() string {
	switch e {
	case DnsFailure:
		return "DNS lookup failed"
	case SocketCreateFailure:
		return "Socket creation failed"
	case SocketConnectFailure:
		return "Socket connection failed"
	case SocketWriteFailure:
		return "Socket write failed"
	case SocketReadFailure:
		return "Socket read failed"
	case ConnectionClosed:
		return "Connection closed"
	case ConnectionReset:
		return "Connection reset by peer"
	case SocketCloseFailure:
		return "Socket close failed"
	case InitFailure:
		return "Initialization failed"
	case Timeout:
		return "Operation timed out"
	case IoUringInit:
		return "io_uring setup failed"
	case IoUringSubmit:
		return "io_uring submit failed"
	case Unsupported:
		return "Unsupported operation"
	default:
		return fmt.Sprintf("Unknown transport error: %d", e)
	}
}

// Error wraps a TransportError together with the error reported by the OS or runtime.
type Error struct {
	TransportErr TransportError
	underlying   error
}

func (e *Error) Error() string {
	if e.underlying != nil {
		return fmt.Sprintf("Transport Error: %s (underlying: %v)", e.TransportErr.Error(), e.underlying)
	}
	return fmt.Sprintf("Transport Error: %s", e.TransportErr.Error())
}

func (e *Error) Unwrap() error {
	return e.underlying
}

// Is reports a match against a bare TransportError, so callers can write
// errors.Is(err, fetcherrors.DnsFailure).
func (e *Error) Is(target error) bool {
	te, ok := target.(TransportError)
	return ok && te == e.TransportErr
}

// NewTransportError creates a new Error with a TransportError
func NewTransportError(te TransportError, underlying error) *Error {
	return &Error{
		TransportErr: te,
		underlying:   underlying,
	}
}

// KindOf returns the TransportError carried anywhere in err's chain.
func KindOf(err error) (TransportError, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.TransportErr, true
	}
	return 0, false
}
