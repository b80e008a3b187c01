//go:build linux

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"github.com/iceber/iouring-go"

	fetcherrors "github.com/nczempin/sockfetch/errors"
)

// UringTransport implements Transport using io_uring for async I/O
type UringTransport struct {
	iour *iouring.IOURing
	fd   int
}

// NewUringTransport creates a new TCP transport with io_uring
func NewUringTransport() (*UringTransport, error) {
	// Create io_uring instance with queue depth of 32
	iour, err := iouring.New(32)
	if err != nil {
		return nil, fetcherrors.NewTransportError(fetcherrors.IoUringInit, err)
	}

	return &UringTransport{
		iour: iour,
		fd:   -1,
	}, nil
}

// Connect establishes a TCP connection using io_uring
func (t *UringTransport) Connect(ctx context.Context, host string, port uint16) error {
	if t.iour == nil {
		return fetcherrors.NewTransportError(fetcherrors.ConnectionClosed, errors.New("transport closed"))
	}
	if t.fd >= 0 {
		return fetcherrors.NewTransportError(fetcherrors.SocketConnectFailure, errors.New("already connected"))
	}
	if err := ctx.Err(); err != nil {
		return fetcherrors.NewTransportError(fetcherrors.SocketConnectFailure, err)
	}

	family, sa, err := resolveSockaddr(ctx, host, port)
	if err != nil {
		return err
	}

	fd, err := syscall.Socket(family, syscall.SOCK_STREAM, 0)
	if err != nil {
		return fetcherrors.NewTransportError(fetcherrors.SocketCreateFailure, err)
	}

	if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
		syscall.Close(fd)
		return fetcherrors.NewTransportError(fetcherrors.InitFailure, err)
	}

	prep, err := iouring.Connect(fd, sa)
	if err != nil {
		syscall.Close(fd)
		return fetcherrors.NewTransportError(fetcherrors.SocketCreateFailure, err)
	}

	result, err := t.submit(prep)
	if err != nil {
		syscall.Close(fd)
		return err
	}
	// Connect completions carry no return value, only an error.
	if err := result.Err(); err != nil {
		syscall.Close(fd)
		return fetcherrors.NewTransportError(fetcherrors.SocketConnectFailure,
			fmt.Errorf("connect %s: %w", net.JoinHostPort(host, strconv.Itoa(int(port))), err))
	}

	t.fd = fd
	return nil
}

// submit queues one request and blocks until its completion arrives.
func (t *UringTransport) submit(req iouring.PrepRequest) (iouring.Result, error) {
	ch := make(chan iouring.Result, 1)
	if _, err := t.iour.SubmitRequest(req, ch); err != nil {
		return nil, fetcherrors.NewTransportError(fetcherrors.IoUringSubmit, err)
	}
	return <-ch, nil
}

// Write sends data over the connection using io_uring
func (t *UringTransport) Write(buf []byte) (int, error) {
	if t.fd < 0 {
		return 0, fetcherrors.NewTransportError(fetcherrors.SocketWriteFailure, errors.New("not connected"))
	}

	result, err := t.submit(iouring.Send(t.fd, buf, 0))
	if err != nil {
		return 0, err
	}

	n, err := result.ReturnInt()
	if err != nil {
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
			return 0, fetcherrors.NewTransportError(fetcherrors.ConnectionClosed, err)
		}
		return 0, fetcherrors.NewTransportError(fetcherrors.SocketWriteFailure, err)
	}
	return n, nil
}

// Read receives data from the connection using io_uring
func (t *UringTransport) Read(buf []byte) (int, error) {
	if t.fd < 0 {
		return 0, fetcherrors.NewTransportError(fetcherrors.SocketReadFailure, errors.New("not connected"))
	}

	result, err := t.submit(iouring.Recv(t.fd, buf, 0))
	if err != nil {
		return 0, err
	}

	n, err := result.ReturnInt()
	if err != nil {
		if errors.Is(err, syscall.ECONNRESET) {
			return 0, fetcherrors.NewTransportError(fetcherrors.ConnectionReset, err)
		}
		return 0, fetcherrors.NewTransportError(fetcherrors.SocketReadFailure, err)
	}
	return n, nil
}

// Close closes the socket and releases the ring.
func (t *UringTransport) Close() error {
	var closeErr error
	if t.fd >= 0 {
		if err := syscall.Close(t.fd); err != nil {
			closeErr = fetcherrors.NewTransportError(fetcherrors.SocketCloseFailure, err)
		}
		t.fd = -1
	}
	if t.iour != nil {
		t.iour.Close()
		t.iour = nil
	}
	return closeErr
}

// resolveSockaddr resolves host to the first usable address and returns the
// matching socket family.
func resolveSockaddr(ctx context.Context, host string, port uint16) (int, syscall.Sockaddr, error) {
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return 0, nil, fetcherrors.NewTransportError(fetcherrors.DnsFailure, err)
	}
	if len(ips) == 0 {
		return 0, nil, fetcherrors.NewTransportError(fetcherrors.DnsFailure, fmt.Errorf("no addresses for %s", host))
	}

	ip := ips[0].IP
	if ip4 := ip.To4(); ip4 != nil {
		sa4 := &syscall.SockaddrInet4{Port: int(port)}
		copy(sa4.Addr[:], ip4)
		return syscall.AF_INET, sa4, nil
	}

	sa6 := &syscall.SockaddrInet6{Port: int(port)}
	copy(sa6.Addr[:], ip.To16())
	return syscall.AF_INET6, sa6, nil
}
