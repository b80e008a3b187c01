//go:build linux

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"

	"github.com/godzie44/go-uring/uring"

	fetcherrors "github.com/nczempin/sockfetch/errors"
)

// UringV2Transport implements Transport using godzie44/go-uring for async I/O
type UringV2Transport struct {
	ring *uring.Ring
	file *os.File
}

// NewUringV2Transport creates a new TCP transport with io_uring (v2 using godzie44/go-uring)
func NewUringV2Transport() (*UringV2Transport, error) {
	// Create io_uring instance with queue depth of 32
	ring, err := uring.New(32)
	if err != nil {
		return nil, fetcherrors.NewTransportError(fetcherrors.IoUringInit, err)
	}

	return &UringV2Transport{ring: ring}, nil
}

// Connect establishes a TCP connection. The connect itself is blocking; reads
// and writes go through the ring.
func (t *UringV2Transport) Connect(ctx context.Context, host string, port uint16) error {
	if t.ring == nil {
		return fetcherrors.NewTransportError(fetcherrors.ConnectionClosed, errors.New("transport closed"))
	}
	if t.file != nil {
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

	if err := syscall.Connect(fd, sa); err != nil {
		syscall.Close(fd)
		return fetcherrors.NewTransportError(fetcherrors.SocketConnectFailure,
			fmt.Errorf("connect %s: %w", net.JoinHostPort(host, strconv.Itoa(int(port))), err))
	}

	if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
		syscall.Close(fd)
		return fetcherrors.NewTransportError(fetcherrors.InitFailure, err)
	}

	t.file = os.NewFile(uintptr(fd), "socket")
	return nil
}

// complete queues op, submits it and waits for its completion result.
func (t *UringV2Transport) complete(op uring.Operation) (int, error) {
	if err := t.ring.QueueSQE(op, 0, 0); err != nil {
		return 0, fetcherrors.NewTransportError(fetcherrors.IoUringSubmit, err)
	}

	if _, err := t.ring.Submit(); err != nil {
		return 0, fetcherrors.NewTransportError(fetcherrors.IoUringSubmit, err)
	}

	cqe, err := t.ring.WaitCQEvents(1)
	if err != nil {
		return 0, fetcherrors.NewTransportError(fetcherrors.IoUringSubmit, err)
	}
	defer t.ring.SeenCQE(cqe)

	if err := cqe.Error(); err != nil {
		return 0, err
	}
	return int(cqe.Res), nil
}

// Write sends data over the connection using io_uring
func (t *UringV2Transport) Write(buf []byte) (int, error) {
	if t.file == nil {
		return 0, fetcherrors.NewTransportError(fetcherrors.SocketWriteFailure, errors.New("not connected"))
	}

	n, err := t.complete(uring.Write(t.file.Fd(), buf, 0))
	if err != nil {
		if _, ok := fetcherrors.KindOf(err); ok {
			return 0, err
		}
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
			return 0, fetcherrors.NewTransportError(fetcherrors.ConnectionClosed, err)
		}
		return 0, fetcherrors.NewTransportError(fetcherrors.SocketWriteFailure, err)
	}
	return n, nil
}

// Read receives data from the connection using io_uring
func (t *UringV2Transport) Read(buf []byte) (int, error) {
	if t.file == nil {
		return 0, fetcherrors.NewTransportError(fetcherrors.SocketReadFailure, errors.New("not connected"))
	}

	n, err := t.complete(uring.Read(t.file.Fd(), buf, 0))
	if err != nil {
		if _, ok := fetcherrors.KindOf(err); ok {
			return 0, err
		}
		if errors.Is(err, syscall.ECONNRESET) {
			return 0, fetcherrors.NewTransportError(fetcherrors.ConnectionReset, err)
		}
		return 0, fetcherrors.NewTransportError(fetcherrors.SocketReadFailure, err)
	}
	return n, nil
}

// Close closes the socket and releases the ring.
func (t *UringV2Transport) Close() error {
	var closeErr error
	if t.file != nil {
		if err := t.file.Close(); err != nil {
			closeErr = fetcherrors.NewTransportError(fetcherrors.SocketCloseFailure, err)
		}
		t.file = nil
	}
	if t.ring != nil {
		t.ring.Close()
		t.ring = nil
	}
	return closeErr
}
