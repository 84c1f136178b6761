package listeners

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/netutil"

	"ucibridge/application/logging"
	"ucibridge/domain/engine"
	"ucibridge/infrastructure/bridge"
	"ucibridge/infrastructure/network"
)

const selectionTimeout = 60 * time.Second

// MultiplexListener exposes every engine behind one TCP port with a small
// name-selection exchange after auth:
//
//	client: ENGINE_LIST
//	server: ENGINE <name> (sorted, one per line), ENGINES_END
//	client: SELECT_ENGINE <name>
//	server: ENGINE_SELECTED
//
// A first line that is anything else routes to the default engine. That
// consumed line is not replayed; the bridge issues its own uci, which
// covers the common case of a client leading with uci.
type MultiplexListener struct {
	host          string
	port          int
	tlsConfig     *tls.Config
	bridge        *bridge.Bridge
	registry      *engine.Registry
	defaultEngine string
	maxConns      int
	logger        logging.Logger
}

func NewMultiplexListener(
	host string,
	port int,
	tlsConfig *tls.Config,
	b *bridge.Bridge,
	registry *engine.Registry,
	defaultEngine string,
	maxConns int,
	logger logging.Logger,
) *MultiplexListener {
	return &MultiplexListener{
		host:          host,
		port:          port,
		tlsConfig:     tlsConfig,
		bridge:        b,
		registry:      registry,
		defaultEngine: defaultEngine,
		maxConns:      maxConns,
		logger:        logger,
	}
}

func (l *MultiplexListener) Run(ctx context.Context) error {
	listener, bindErr := bindWithRetry(ctx, l.host, l.port, l.logger)
	if bindErr != nil {
		return fmt.Errorf("multiplex listener: %w", bindErr)
	}
	if l.maxConns > 0 {
		listener = netutil.LimitListener(listener, l.maxConns)
	}
	if l.tlsConfig != nil {
		listener = tls.NewListener(listener, l.tlsConfig)
	}
	l.logger.Printf("multiplex listener on %s:%d serving %d engines", l.host, l.port, l.registry.Len())

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Warnf("accept failed on port %d: %v", l.port, acceptErr)
			continue
		}
		go l.Handle(ctx, network.NewLineConn(conn))
	}
}

// Handle serves one established connection: admission, auth, the selection
// exchange, then the bridge session. Relay legs call this directly for
// paired rendezvous connections, which never pass through the accept loop.
func (l *MultiplexListener) Handle(ctx context.Context, conn *network.LineConn) {
	if !l.bridge.Admit(conn) {
		conn.Close()
		return
	}
	if authErr := l.bridge.Authenticate(conn); authErr != nil {
		conn.Close()
		return
	}

	descriptor, ok := l.selectEngine(conn)
	if !ok {
		conn.Close()
		return
	}
	l.bridge.ServeAuthorized(ctx, conn, descriptor)
}

// selectEngine runs the selection exchange and resolves the descriptor to
// bridge to. Returns false when the connection must close instead.
func (l *MultiplexListener) selectEngine(conn *network.LineConn) (engine.Descriptor, bool) {
	line, readErr := conn.ReadLine(selectionTimeout)
	if readErr != nil {
		return engine.Descriptor{}, false
	}

	if line != "ENGINE_LIST" {
		return l.defaultDescriptor(conn)
	}

	for _, name := range l.registry.SortedNames() {
		if writeErr := conn.WriteLine("ENGINE " + name); writeErr != nil {
			return engine.Descriptor{}, false
		}
	}
	if writeErr := conn.WriteLine("ENGINES_END"); writeErr != nil {
		return engine.Descriptor{}, false
	}

	line, readErr = conn.ReadLine(selectionTimeout)
	if readErr != nil {
		return engine.Descriptor{}, false
	}

	name, isSelect := strings.CutPrefix(line, "SELECT_ENGINE ")
	if !isSelect {
		return l.defaultDescriptor(conn)
	}

	descriptor, known := l.registry.Get(strings.TrimSpace(name))
	if !known {
		_ = conn.WriteLine("ENGINE_ERROR unknown engine")
		return engine.Descriptor{}, false
	}
	if writeErr := conn.WriteLine("ENGINE_SELECTED"); writeErr != nil {
		return engine.Descriptor{}, false
	}
	return descriptor, true
}

func (l *MultiplexListener) defaultDescriptor(conn *network.LineConn) (engine.Descriptor, bool) {
	descriptor, defaultErr := l.registry.Default(l.defaultEngine)
	if defaultErr != nil {
		l.logger.Errorf("no default engine for %s: %v", conn.RemoteIP(), defaultErr)
		return engine.Descriptor{}, false
	}
	return descriptor, true
}
