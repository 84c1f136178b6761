package relay

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"ucibridge/application"
	"ucibridge/domain/auth"
	"ucibridge/domain/engine"
	authinfra "ucibridge/infrastructure/auth"
	"ucibridge/infrastructure/bridge"
	"ucibridge/infrastructure/listeners"
	"ucibridge/infrastructure/network"
	"ucibridge/infrastructure/session"
	"ucibridge/infrastructure/telemetry/trafficstats"
)

type fakeEngine struct {
	mu    sync.Mutex
	alive bool
	lines chan string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{alive: true, lines: make(chan string, 16)}
}

func (e *fakeEngine) WriteLine(line string) error {
	if line == "uci" {
		e.lines <- "uciok"
	}
	return nil
}

func (e *fakeEngine) Lines() <-chan string { return e.lines }

func (e *fakeEngine) Alive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alive
}

func (e *fakeEngine) Quit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.alive {
		e.alive = false
		close(e.lines)
	}
}

func (e *fakeEngine) Kill() { e.Quit() }

type fakeSpawner struct{}

func (fakeSpawner) Spawn(string) (application.EngineProcess, error) {
	return newFakeEngine(), nil
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func TestDialerRegistersAndBridgesAfterPairing(t *testing.T) {
	listener, listenErr := net.Listen("tcp", "127.0.0.1:0")
	if listenErr != nil {
		t.Fatalf("listen: %v", listenErr)
	}
	defer func() { _ = listener.Close() }()

	manager := session.NewManager(fakeSpawner{}, nopLogger{})
	b := bridge.New(manager, nil, authinfra.NewHandshake(auth.MethodNone, "", ""),
		trafficstats.NewCollector(time.Second, 0), bridge.Settings{}, nopLogger{})
	descriptor := engine.Descriptor{Name: "stockfish", Path: "/engines/stockfish"}
	dialer := NewDialer(listener.Addr().String(), "secret", func(ctx context.Context, conn *network.LineConn) {
		b.Serve(ctx, conn, descriptor)
	}, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dialer.Run(ctx, "stockfish")

	conn, acceptErr := listener.Accept()
	if acceptErr != nil {
		t.Fatalf("accept: %v", acceptErr)
	}
	defer func() { _ = conn.Close() }()
	reader := bufio.NewReader(conn)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	hello, readErr := reader.ReadString('\n')
	if readErr != nil {
		t.Fatalf("read hello: %v", readErr)
	}
	wantHello := "SESSION " + SessionID("secret", "stockfish") + " server"
	if strings.TrimSpace(hello) != wantHello {
		t.Fatalf("hello = %q, want %q", strings.TrimSpace(hello), wantHello)
	}

	// Complete registration and pairing, then speak through the bridge.
	if _, writeErr := conn.Write([]byte("REGISTERED\nPAIRED\n")); writeErr != nil {
		t.Fatalf("write: %v", writeErr)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, readErr := reader.ReadString('\n')
	if readErr != nil {
		t.Fatalf("read bridge output: %v", readErr)
	}
	if strings.TrimSpace(line) != "uciok" {
		t.Fatalf("bridge output = %q, want uciok", line)
	}
}

func TestDialerMultiplexSlotOffersEngineSelection(t *testing.T) {
	listener, listenErr := net.Listen("tcp", "127.0.0.1:0")
	if listenErr != nil {
		t.Fatalf("listen: %v", listenErr)
	}
	defer func() { _ = listener.Close() }()

	manager := session.NewManager(fakeSpawner{}, nopLogger{})
	b := bridge.New(manager, nil, authinfra.NewHandshake(auth.MethodNone, "", ""),
		trafficstats.NewCollector(time.Second, 0), bridge.Settings{}, nopLogger{})

	registry := engine.NewRegistry()
	registry.Add(engine.Descriptor{Name: "stockfish", Path: "/engines/stockfish", Port: 9999})
	registry.Add(engine.Descriptor{Name: "lc0", Path: "/engines/lc0", Port: 10000})
	mux := listeners.NewMultiplexListener("0.0.0.0", 9998, nil, b, registry, "", 0, nopLogger{})

	dialer := NewDialer(listener.Addr().String(), "secret", mux.Handle, nopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dialer.Run(ctx, MultiplexLabel)

	conn, acceptErr := listener.Accept()
	if acceptErr != nil {
		t.Fatalf("accept: %v", acceptErr)
	}
	defer func() { _ = conn.Close() }()
	reader := bufio.NewReader(conn)

	recv := func() string {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		line, readErr := reader.ReadString('\n')
		if readErr != nil {
			t.Fatalf("read: %v", readErr)
		}
		return strings.TrimSpace(line)
	}

	wantHello := "SESSION " + SessionID("secret", MultiplexLabel) + " server"
	if got := recv(); got != wantHello {
		t.Fatalf("hello = %q, want %q", got, wantHello)
	}
	if _, writeErr := conn.Write([]byte("REGISTERED\nPAIRED\n")); writeErr != nil {
		t.Fatalf("write: %v", writeErr)
	}

	// The paired slot speaks the same selection exchange as the single-port
	// listener, so a relayed client can reach any engine.
	if _, writeErr := conn.Write([]byte("ENGINE_LIST\n")); writeErr != nil {
		t.Fatalf("write: %v", writeErr)
	}
	if got := recv(); got != "ENGINE lc0" {
		t.Fatalf("first entry = %q", got)
	}
	if got := recv(); got != "ENGINE stockfish" {
		t.Fatalf("second entry = %q", got)
	}
	if got := recv(); got != "ENGINES_END" {
		t.Fatalf("terminator = %q", got)
	}

	if _, writeErr := conn.Write([]byte("SELECT_ENGINE lc0\n")); writeErr != nil {
		t.Fatalf("write: %v", writeErr)
	}
	if got := recv(); got != "ENGINE_SELECTED" {
		t.Fatalf("selection reply = %q", got)
	}
	if got := recv(); got != "uciok" {
		t.Fatalf("bridge output = %q", got)
	}
}

func TestDialerReconnectsAfterError(t *testing.T) {
	listener, listenErr := net.Listen("tcp", "127.0.0.1:0")
	if listenErr != nil {
		t.Fatalf("listen: %v", listenErr)
	}
	defer func() { _ = listener.Close() }()

	manager := session.NewManager(fakeSpawner{}, nopLogger{})
	b := bridge.New(manager, nil, authinfra.NewHandshake(auth.MethodNone, "", ""),
		trafficstats.NewCollector(time.Second, 0), bridge.Settings{}, nopLogger{})
	descriptor := engine.Descriptor{Name: "stockfish", Path: "/engines/stockfish"}
	dialer := NewDialer(listener.Addr().String(), "secret", func(ctx context.Context, conn *network.LineConn) {
		b.Serve(ctx, conn, descriptor)
	}, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		dialer.Run(ctx, "stockfish")
	}()

	// Reject the first registration; the dialer should not give up, but the
	// reconnect pause is long, so just verify the loop survives the error.
	conn, acceptErr := listener.Accept()
	if acceptErr != nil {
		t.Fatalf("accept: %v", acceptErr)
	}
	reader := bufio.NewReader(conn)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _ = reader.ReadString('\n')
	_, _ = conn.Write([]byte("ERROR max sessions reached\n"))
	_ = conn.Close()

	select {
	case <-done:
		t.Fatal("dialer exited after a registration error")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dialer did not exit on cancellation")
	}
}
