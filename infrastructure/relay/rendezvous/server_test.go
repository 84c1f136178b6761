package rendezvous

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func startServer(t *testing.T, maxSessions int) (string, *Server, context.CancelFunc) {
	t.Helper()

	listener, listenErr := net.Listen("tcp", "127.0.0.1:0")
	if listenErr != nil {
		t.Fatalf("listen: %v", listenErr)
	}

	server := NewServer(maxSessions, time.Hour, nopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = server.Run(ctx, listener) }()
	t.Cleanup(cancel)
	return listener.Addr().String(), server, cancel
}

type testConn struct {
	net.Conn
	reader *bufio.Reader
	t      *testing.T
}

func dial(t *testing.T, addr string) *testConn {
	t.Helper()
	conn, dialErr := net.Dial("tcp", addr)
	if dialErr != nil {
		t.Fatalf("dial: %v", dialErr)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testConn{Conn: conn, reader: bufio.NewReader(conn), t: t}
}

func (c *testConn) send(line string) {
	c.t.Helper()
	if _, writeErr := c.Write([]byte(line + "\n")); writeErr != nil {
		c.t.Fatalf("write: %v", writeErr)
	}
}

func (c *testConn) recv() string {
	c.t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, readErr := c.reader.ReadString('\n')
	if readErr != nil {
		c.t.Fatalf("read: %v", readErr)
	}
	return strings.TrimSpace(line)
}

func (c *testConn) recvErr() (string, error) {
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, readErr := c.reader.ReadString('\n')
	return strings.TrimSpace(line), readErr
}

func TestPairingAndByteRelay(t *testing.T) {
	addr, _, _ := startServer(t, 0)

	serverLeg := dial(t, addr)
	serverLeg.send("SESSION abc123 server")
	if got := serverLeg.recv(); got != "REGISTERED" {
		t.Fatalf("registration reply = %q", got)
	}

	clientLeg := dial(t, addr)
	clientLeg.send("SESSION abc123 client")
	if got := clientLeg.recv(); got != "CONNECTED" {
		t.Fatalf("client reply = %q", got)
	}
	if got := serverLeg.recv(); got != "PAIRED" {
		t.Fatalf("pairing reply = %q", got)
	}

	// Bytes flow both ways in order.
	clientLeg.send("uci")
	if got := serverLeg.recv(); got != "uci" {
		t.Fatalf("relayed line = %q", got)
	}
	serverLeg.send("id name remote")
	serverLeg.send("uciok")
	if got := clientLeg.recv(); got != "id name remote" {
		t.Fatalf("relayed line = %q", got)
	}
	if got := clientLeg.recv(); got != "uciok" {
		t.Fatalf("relayed line = %q", got)
	}
}

func TestRelaySurvivesLongIdlePause(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps past the hello read timeout")
	}
	addr, _, _ := startServer(t, 0)

	serverLeg := dial(t, addr)
	serverLeg.send("SESSION idle server")
	if got := serverLeg.recv(); got != "REGISTERED" {
		t.Fatalf("registration reply = %q", got)
	}

	clientLeg := dial(t, addr)
	clientLeg.send("SESSION idle client")
	if got := clientLeg.recv(); got != "CONNECTED" {
		t.Fatalf("client reply = %q", got)
	}
	if got := serverLeg.recv(); got != "PAIRED" {
		t.Fatalf("pairing reply = %q", got)
	}

	clientLeg.send("uci")
	if got := serverLeg.recv(); got != "uci" {
		t.Fatalf("relayed line = %q", got)
	}

	// Outlive the hello read deadline before sending anything else. The
	// relay must keep both legs open through the quiet stretch.
	time.Sleep(dispatchTimeout + time.Second)

	clientLeg.send("isready")
	if got := serverLeg.recv(); got != "isready" {
		t.Fatalf("relayed line after pause = %q", got)
	}
	serverLeg.send("readyok")
	if got := clientLeg.recv(); got != "readyok" {
		t.Fatalf("relayed line after pause = %q", got)
	}
}

func TestUnknownSessionRejected(t *testing.T) {
	addr, _, _ := startServer(t, 0)

	clientLeg := dial(t, addr)
	clientLeg.send("SESSION nosuch client")
	if got := clientLeg.recv(); got != "ERROR unknown session" {
		t.Fatalf("reply = %q", got)
	}
}

func TestInvalidHelloRejected(t *testing.T) {
	addr, _, _ := startServer(t, 0)

	for _, hello := range []string{"HELLO", "SESSION onlyid", "SESSION id observer"} {
		conn := dial(t, addr)
		conn.send(hello)
		if got := conn.recv(); !strings.HasPrefix(got, "ERROR") {
			t.Errorf("hello %q got %q, want ERROR line", hello, got)
		}
	}
}

func TestMaxSessionsRejected(t *testing.T) {
	addr, _, _ := startServer(t, 1)

	first := dial(t, addr)
	first.send("SESSION one server")
	if got := first.recv(); got != "REGISTERED" {
		t.Fatalf("reply = %q", got)
	}

	second := dial(t, addr)
	second.send("SESSION two server")
	if got := second.recv(); got != "ERROR max sessions reached" {
		t.Fatalf("reply = %q", got)
	}
}

func TestSupersessionReplacesOldLeg(t *testing.T) {
	addr, server, _ := startServer(t, 0)

	old := dial(t, addr)
	old.send("SESSION abc server")
	if got := old.recv(); got != "REGISTERED" {
		t.Fatalf("reply = %q", got)
	}

	replacement := dial(t, addr)
	replacement.send("SESSION abc server")
	if got := replacement.recv(); got != "REGISTERED" {
		t.Fatalf("replacement reply = %q", got)
	}

	// The old leg is closed without ever seeing PAIRED.
	if line, readErr := old.recvErr(); readErr == nil {
		t.Fatalf("old leg still readable, got %q", line)
	}
	if server.SessionCount() != 1 {
		t.Fatalf("SessionCount = %d, want 1", server.SessionCount())
	}

	// The replacement pairs normally.
	clientLeg := dial(t, addr)
	clientLeg.send("SESSION abc client")
	if got := clientLeg.recv(); got != "CONNECTED" {
		t.Fatalf("client reply = %q", got)
	}
	if got := replacement.recv(); got != "PAIRED" {
		t.Fatalf("pairing reply = %q", got)
	}
}

func TestRecordRemovedWhenSessionEnds(t *testing.T) {
	addr, server, _ := startServer(t, 0)

	serverLeg := dial(t, addr)
	serverLeg.send("SESSION abc server")
	serverLeg.recv()

	clientLeg := dial(t, addr)
	clientLeg.send("SESSION abc client")
	clientLeg.recv()
	serverLeg.recv() // PAIRED

	_ = clientLeg.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if server.SessionCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("record not removed after session end")
}
