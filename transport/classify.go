package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	fetcherrors "github.com/nczempin/sockfetch/errors"
)

// deadline returns the absolute deadline for the next operation, or the zero
// time when no timeout is configured.
func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classifyWrite maps a failed write on a net.Conn to a transport error.
func classifyWrite(err error) error {
	switch {
	case isTimeout(err):
		return fetcherrors.NewTransportError(fetcherrors.Timeout, err)
	case errors.Is(err, syscall.EPIPE), errors.Is(err, syscall.ECONNRESET), errors.Is(err, net.ErrClosed):
		return fetcherrors.NewTransportError(fetcherrors.ConnectionClosed, err)
	default:
		return fetcherrors.NewTransportError(fetcherrors.SocketWriteFailure, err)
	}
}

// classifyRead maps a failed read on a net.Conn to a transport error.
// io.EOF is not an error at this layer and must be handled before calling.
func classifyRead(err error) error {
	switch {
	case isTimeout(err):
		return fetcherrors.NewTransportError(fetcherrors.Timeout, err)
	case errors.Is(err, syscall.ECONNRESET):
		return fetcherrors.NewTransportError(fetcherrors.ConnectionReset, err)
	case errors.Is(err, net.ErrClosed):
		return fetcherrors.NewTransportError(fetcherrors.ConnectionClosed, err)
	default:
		return fetcherrors.NewTransportError(fetcherrors.SocketReadFailure, err)
	}
}

// readConn performs one read on conn with the recv(2) convention: an orderly
// shutdown by the peer is reported as 0, nil.
func readConn(conn net.Conn, buf []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(deadline(timeout)); err != nil {
			return 0, fetcherrors.NewTransportError(fetcherrors.SocketReadFailure, err)
		}
	}

	n, err := conn.Read(buf)
	if n > 0 {
		// A trailing error resurfaces on the next read.
		return n, nil
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, classifyRead(err)
	}
	return 0, nil
}

// writeConn performs one write on conn.
func writeConn(conn net.Conn, buf []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		if err := conn.SetWriteDeadline(deadline(timeout)); err != nil {
			return 0, fetcherrors.NewTransportError(fetcherrors.SocketWriteFailure, err)
		}
	}

	n, err := conn.Write(buf)
	if err != nil {
		return n, classifyWrite(err)
	}
	return n, nil
}
