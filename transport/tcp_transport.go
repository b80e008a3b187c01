package transport

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	fetcherrors "github.com/nczempin/sockfetch/errors"
)

// TcpTransport implements the Transport interface using TCP sockets
type TcpTransport struct {
	conn    net.Conn
	timeout time.Duration
}

// NewTcpTransport creates a new TcpTransport instance. A zero timeout waits
// indefinitely on connect, read and write.
func NewTcpTransport(timeout time.Duration) *TcpTransport {
	return &TcpTransport{
		conn:    nil,
		timeout: timeout,
	}
}

// Connect establishes a TCP connection to the specified host and port
func (t *TcpTransport) Connect(ctx context.Context, host string, port uint16) error {
	if t.conn != nil {
		return fetcherrors.NewTransportError(fetcherrors.SocketConnectFailure, errors.New("already connected"))
	}

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	dialer := net.Dialer{Timeout: t.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return classifyDial(err)
	}

	// Set TCP_NODELAY to disable Nagle's algorithm for lower latency
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return fetcherrors.NewTransportError(fetcherrors.InitFailure, err)
		}
	}

	t.conn = conn
	return nil
}

// classifyDial maps a dial failure to DNS, timeout or connect errors.
func classifyDial(err error) error {
	if isTimeout(err) {
		return fetcherrors.NewTransportError(fetcherrors.Timeout, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return fetcherrors.NewTransportError(fetcherrors.DnsFailure, err)
	}

	// Refused, unreachable and cancelled dials all land here.
	return fetcherrors.NewTransportError(fetcherrors.SocketConnectFailure, err)
}

// Write sends data over the TCP connection
func (t *TcpTransport) Write(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, fetcherrors.NewTransportError(fetcherrors.SocketWriteFailure, nil)
	}
	return writeConn(t.conn, buf, t.timeout)
}

// Read receives data from the TCP connection
func (t *TcpTransport) Read(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, fetcherrors.NewTransportError(fetcherrors.SocketReadFailure, nil)
	}
	return readConn(t.conn, buf, t.timeout)
}

// Close closes the TCP connection
func (t *TcpTransport) Close() error {
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
