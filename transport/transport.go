package transport

import (
	"context"
	"fmt"
	"time"

	fetcherrors "github.com/nczempin/sockfetch/errors"
)

// Transport defines the interface for network I/O operations.
// Implementations include TCP, Unix domain sockets and io_uring backed TCP.
type Transport interface {
	// Connect establishes a connection to the specified host and port.
	// For Unix sockets, the host parameter is the socket path and port is ignored.
	Connect(ctx context.Context, host string, port uint16) error

	// Write sends data to the connected peer.
	// It may write fewer bytes than len(buf); callers loop on short writes.
	Write(buf []byte) (int, error)

	// Read receives data from the connected peer.
	// It returns 0, nil once the peer has closed its side of the stream.
	Read(buf []byte) (int, error)

	// Close closes the connection. Calling it more than once is a no-op.
	Close() error
}

// Kind names a Transport implementation.
type Kind string

const (
	KindTCP     Kind = "tcp"
	KindUnix    Kind = "unix"
	KindUring   Kind = "uring"
	KindUringV2 Kind = "uring-v2"
)

// Kinds lists every Kind accepted by New.
var Kinds = []Kind{KindTCP, KindUnix, KindUring, KindUringV2}

// Options configures a Transport built by New.
type Options struct {
	// Timeout bounds the dial and every individual read or write.
	// Zero waits indefinitely. The io_uring kinds reject a non-zero value.
	Timeout time.Duration
}

// New builds the Transport for kind.
func New(kind Kind, opts Options) (Transport, error) {
	switch kind {
	case KindTCP:
		return NewTcpTransport(opts.Timeout), nil
	case KindUnix:
		return NewUnixTransport(opts.Timeout), nil
	case KindUring, KindUringV2:
		if opts.Timeout > 0 {
			return nil, fetcherrors.NewTransportError(fetcherrors.Unsupported,
				fmt.Errorf("%s transport does not support timeouts", kind))
		}
		return newUringTransport(kind)
	default:
		return nil, fetcherrors.NewTransportError(fetcherrors.InitFailure,
			fmt.Errorf("unknown transport %q", kind))
	}
}
