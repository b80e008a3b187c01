package transport

import (
	"context"
	"errors"
	"net"
	"time"

	fetcherrors "github.com/nczempin/sockfetch/errors"
)

// UnixTransport implements the Transport interface using Unix domain sockets
type UnixTransport struct {
	conn    net.Conn
	timeout time.Duration
}

// NewUnixTransport creates a new UnixTransport instance
func NewUnixTransport(timeout time.Duration) *UnixTransport {
	return &UnixTransport{
		conn:    nil,
		timeout: timeout,
	}
}

// Connect establishes a Unix domain socket connection to the specified path.
// The port parameter is ignored for Unix sockets.
func (t *UnixTransport) Connect(ctx context.Context, path string, port uint16) error {
	if t.conn != nil {
		return fetcherrors.NewTransportError(fetcherrors.SocketConnectFailure, errors.New("already connected"))
	}

	dialer := net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		if isTimeout(err) {
			return fetcherrors.NewTransportError(fetcherrors.Timeout, err)
		}
		return fetcherrors.NewTransportError(fetcherrors.SocketConnectFailure, err)
	}

	t.conn = conn
	return nil
}

// Write sends data over the Unix domain socket
func (t *UnixTransport) Write(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, fetcherrors.NewTransportError(fetcherrors.SocketWriteFailure, nil)
	}
	return writeConn(t.conn, buf, t.timeout)
}

// Read receives data from the Unix domain socket
func (t *UnixTransport) Read(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, fetcherrors.NewTransportError(fetcherrors.SocketReadFailure, nil)
	}
	return readConn(t.conn, buf, t.timeout)
}

// Close closes the Unix domain socket connection
func (t *UnixTransport) Close() error {
	if t.conn == nil {
		return nil // Idempotent close
	}

	err := t.conn.Close()
	t.conn = nil

	if err != nil {
		return fetcherrors.NewTransportError(fetcherrors.SocketCloseFailure, err)
	}

	return nil
}
