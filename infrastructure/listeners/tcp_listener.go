package listeners

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/netutil"

	"ucibridge/application/logging"
	"ucibridge/domain/engine"
	"ucibridge/infrastructure/bridge"
	"ucibridge/infrastructure/network"
)

const (
	bindAttempts   = 5
	bindRetryPause = 5 * time.Second
)

// EngineListener serves one engine descriptor on its own TCP port. A bind
// failure is retried a few times before the listener gives up; the
// orchestrator keeps running the remaining engines.
type EngineListener struct {
	host      string
	tlsConfig *tls.Config
	bridge    *bridge.Bridge
	maxConns  int
	logger    logging.Logger
}

func NewEngineListener(host string, tlsConfig *tls.Config, b *bridge.Bridge, maxConns int, logger logging.Logger) *EngineListener {
	return &EngineListener{
		host:      host,
		tlsConfig: tlsConfig,
		bridge:    b,
		maxConns:  maxConns,
		logger:    logger,
	}
}

func (l *EngineListener) Run(ctx context.Context, descriptor engine.Descriptor) error {
	listener, bindErr := bindWithRetry(ctx, l.host, descriptor.Port, l.logger)
	if bindErr != nil {
		return fmt.Errorf("engine %s listener: %w", descriptor.Name, bindErr)
	}
	if l.maxConns > 0 {
		listener = netutil.LimitListener(listener, l.maxConns)
	}
	if l.tlsConfig != nil {
		listener = tls.NewListener(listener, l.tlsConfig)
	}
	l.logger.Printf("engine %s listening on %s:%d", descriptor.Name, l.host, descriptor.Port)

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
			l.logger.Warnf("accept failed on port %d: %v", descriptor.Port, acceptErr)
			continue
		}
		go l.bridge.Serve(ctx, network.NewLineConn(conn), descriptor)
	}
}

// bindWithRetry attempts the bind up to bindAttempts times with a pause
// between attempts, so a port still held in TIME_WAIT after a restart does
// not take the engine down.
func bindWithRetry(ctx context.Context, host string, port int, logger logging.Logger) (net.Listener, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	var lastErr error
	for attempt := 1; attempt <= bindAttempts; attempt++ {
		listener, listenErr := net.Listen("tcp", addr)
		if listenErr == nil {
			return listener, nil
		}
		lastErr = listenErr
		logger.Warnf("bind %s failed (attempt %d/%d): %v", addr, attempt, bindAttempts, listenErr)

		if attempt == bindAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bindRetryPause):
		}
	}
	return nil, fmt.Errorf("failed to bind %s: %w", addr, lastErr)
}
