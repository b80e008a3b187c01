package transport

import (
	"context"
	"net"
	"testing"
	"time"

	fetcherrors "github.com/nczempin/sockfetch/errors"
)

func setupTcpTestServer(t *testing.T, serverLogic func(net.Conn)) (string, uint16, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create test server: %v", err)
	}

	addr := listener.Addr().(*net.TCPAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		serverLogic(conn)
		conn.Close()
	}()

	cleanup := func() {
		listener.Close()
		<-done
	}

	return addr.IP.String(), uint16(addr.Port), cleanup
}

// resetOnClose makes the next Close on conn send RST instead of FIN.
func resetOnClose(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetLinger(0)
	}
}

func expectKind(t *testing.T, err error, want fetcherrors.TransportError) {
	t.Helper()

	if err == nil {
		t.Fatalf("Expected %v, got nil", want)
	}

	httpErr, ok := err.(*fetcherrors.Error)
	if !ok {
		t.Fatalf("Expected *fetcherrors.Error, got %T", err)
	}

	if httpErr.TransportErr != want {
		t.Errorf("Expected %v, got %v", want, httpErr.TransportErr)
	}
}

func TestTcpTransport_Construction(t *testing.T) {
	transport := NewTcpTransport(0)
	if transport == nil {
		t.Fatal("NewTcpTransport returned nil")
	}
	if transport.conn != nil {
		t.Error("New transport should have nil connection")
	}
}

func TestTcpTransport_Connect_Success(t *testing.T) {
	host, port, cleanup := setupTcpTestServer(t, func(conn net.Conn) {
		// Empty server logic for basic connection test
	})
	defer cleanup()

	transport := NewTcpTransport(0)
	err := transport.Connect(context.Background(), host, port)
	if err != nil {
		t.Errorf("Connect failed: %v", err)
	}

	if transport.conn == nil {
		t.Error("Connection should not be nil after successful connect")
	}

	transport.Close()
}

func TestTcpTransport_Connect_Failure_DnsError(t *testing.T) {
	transport := NewTcpTransport(0)
	err := transport.Connect(context.Background(), "this-is-not-a-real-domain.invalid", 80)

	expectKind(t, err, fetcherrors.DnsFailure)
}

func TestTcpTransport_Connect_Failure_ConnectionRefused(t *testing.T) {
	// Grab a free port, then release it so nothing is listening.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve port: %v", err)
	}
	port := uint16(listener.Addr().(*net.TCPAddr).Port)
	listener.Close()

	transport := NewTcpTransport(0)
	err = transport.Connect(context.Background(), "127.0.0.1", port)

	expectKind(t, err, fetcherrors.SocketConnectFailure)
}

func TestTcpTransport_Connect_Failure_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport := NewTcpTransport(0)
	err := transport.Connect(ctx, "127.0.0.1", 80)

	expectKind(t, err, fetcherrors.SocketConnectFailure)
}

func TestTcpTransport_Connect_Twice(t *testing.T) {
	host, port, cleanup := setupTcpTestServer(t, func(conn net.Conn) {})
	defer cleanup()

	transport := NewTcpTransport(0)
	if err := transport.Connect(context.Background(), host, port); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer transport.Close()

	err := transport.Connect(context.Background(), host, port)
	expectKind(t, err, fetcherrors.SocketConnectFailure)
}

func TestTcpTransport_Write_Success(t *testing.T) {
	messageToSend := "hello server"
	received := make(chan string, 1)

	host, port, cleanup := setupTcpTestServer(t, func(conn net.Conn) {
		buf := make([]byte, 1024)
		n, _ := conn.Read(buf)
		received <- string(buf[:n])
	})
	defer cleanup()

	transport := NewTcpTransport(0)
	if err := transport.Connect(context.Background(), host, port); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer transport.Close()

	n, err := transport.Write([]byte(messageToSend))
	if err != nil {
		t.Errorf("Write failed: %v", err)
	}

	if n != len(messageToSend) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(messageToSend), n)
	}

	select {
	case msg := <-received:
		if msg != messageToSend {
			t.Errorf("Expected %q, got %q", messageToSend, msg)
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for message")
	}
}

func TestTcpTransport_Read_Success(t *testing.T) {
	messageFromServer := "hello client"

	host, port, cleanup := setupTcpTestServer(t, func(conn net.Conn) {
		conn.Write([]byte(messageFromServer))
	})
	defer cleanup()

	transport := NewTcpTransport(0)
	if err := transport.Connect(context.Background(), host, port); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer transport.Close()

	buf := make([]byte, 1024)
	n, err := transport.Read(buf)
	if err != nil {
		t.Errorf("Read failed: %v", err)
	}

	if n != len(messageFromServer) {
		t.Errorf("Expected to read %d bytes, read %d", len(messageFromServer), n)
	}

	received := string(buf[:n])
	if received != messageFromServer {
		t.Errorf("Expected %q, got %q", messageFromServer, received)
	}
}

func TestTcpTransport_Read_PeerClosed_ReturnsZero(t *testing.T) {
	host, port, cleanup := setupTcpTestServer(t, func(conn net.Conn) {
		// Server immediately closes
	})
	defer cleanup()

	transport := NewTcpTransport(0)
	if err := transport.Connect(context.Background(), host, port); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer transport.Close()

	buf := make([]byte, 1024)
	n, err := transport.Read(buf)
	if err != nil {
		t.Fatalf("Expected orderly close, got %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 bytes on peer close, got %d", n)
	}
}

func TestTcpTransport_Read_Failure_ConnectionReset(t *testing.T) {
	host, port, cleanup := setupTcpTestServer(t, func(conn net.Conn) {
		resetOnClose(conn)
	})
	defer cleanup()

	transport := NewTcpTransport(0)
	if err := transport.Connect(context.Background(), host, port); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer transport.Close()

	// Give server time to close with RST
	time.Sleep(50 * time.Millisecond)

	buf := make([]byte, 1024)
	_, err := transport.Read(buf)

	expectKind(t, err, fetcherrors.ConnectionReset)
}

func TestTcpTransport_Read_Failure_Timeout(t *testing.T) {
	release := make(chan struct{})
	host, port, cleanup := setupTcpTestServer(t, func(conn net.Conn) {
		<-release
	})
	defer cleanup()
	defer close(release)

	transport := NewTcpTransport(20 * time.Millisecond)
	if err := transport.Connect(context.Background(), host, port); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer transport.Close()

	buf := make([]byte, 1024)
	_, err := transport.Read(buf)

	expectKind(t, err, fetcherrors.Timeout)
}

func TestTcpTransport_Close_Success(t *testing.T) {
	host, port, cleanup := setupTcpTestServer(t, func(conn net.Conn) {})
	defer cleanup()

	transport := NewTcpTransport(0)
	if err := transport.Connect(context.Background(), host, port); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	err := transport.Close()
	if err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if transport.conn != nil {
		t.Error("Connection should be nil after close")
	}
}

func TestTcpTransport_Close_Idempotent(t *testing.T) {
	host, port, cleanup := setupTcpTestServer(t, func(conn net.Conn) {})
	defer cleanup()

	transport := NewTcpTransport(0)
	if err := transport.Connect(context.Background(), host, port); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// First close
	if err := transport.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}

	// Second close should also succeed
	if err := transport.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestTcpTransport_Write_Failure_ClosedConnection(t *testing.T) {
	host, port, cleanup := setupTcpTestServer(t, func(conn net.Conn) {
		resetOnClose(conn)
	})
	defer cleanup()

	transport := NewTcpTransport(0)
	if err := transport.Connect(context.Background(), host, port); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer transport.Close()

	// Wait for server to close with RST
	time.Sleep(50 * time.Millisecond)

	_, err := transport.Write([]byte("this should fail"))

	expectKind(t, err, fetcherrors.ConnectionClosed)
}

func TestTcpTransport_Write_Failure_NoConnection(t *testing.T) {
	transport := NewTcpTransport(0)

	_, err := transport.Write([]byte("test"))

	expectKind(t, err, fetcherrors.SocketWriteFailure)
}

func TestTcpTransport_Read_Failure_NoConnection(t *testing.T) {
	transport := NewTcpTransport(0)

	buf := make([]byte, 1024)
	_, err := transport.Read(buf)

	expectKind(t, err, fetcherrors.SocketReadFailure)
}
