package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ucibridge/application"
	"ucibridge/application/logging"
	"ucibridge/domain/engine"
	"ucibridge/infrastructure/auth"
	"ucibridge/infrastructure/network"
	"ucibridge/infrastructure/session"
	"ucibridge/infrastructure/telemetry/trafficstats"
	"ucibridge/infrastructure/throttle"
	"ucibridge/infrastructure/trust"
)

const (
	uciokTimeout     = 30 * time.Second
	loopReadTimeout  = 60 * time.Second
	inactivityPeriod = time.Minute
)

// Settings is the per-bridge slice of configuration.
type Settings struct {
	TrustGate         bool
	AutoTrust         bool
	InactivityTimeout time.Duration
	HeartbeatInterval time.Duration
	ThrottleInterval  time.Duration
	Keepalive         time.Duration
	WatchdogInterval  time.Duration
	GlobalOverrides   engine.OverrideMap
	LogUCI            bool
	DisplayUCI        bool
	LogDir            string
}

// Bridge wires one accepted connection to one engine subprocess: trust gate,
// auth, engine acquisition, heartbeat, inactivity watchdog, and the two copy
// loops.
type Bridge struct {
	sessions  *session.Manager
	filter    *trust.Filter
	handshake *auth.Handshake
	stats     *trafficstats.Collector
	settings  Settings
	logger    logging.Logger
}

func New(
	sessions *session.Manager,
	filter *trust.Filter,
	handshake *auth.Handshake,
	stats *trafficstats.Collector,
	settings Settings,
	logger logging.Logger,
) *Bridge {
	return &Bridge{
		sessions:  sessions,
		filter:    filter,
		handshake: handshake,
		stats:     stats,
		settings:  settings,
		logger:    logger,
	}
}

// Serve runs one client session to completion. The connection is closed on
// every path out; the engine is released honoring keepalive.
func (b *Bridge) Serve(ctx context.Context, conn *network.LineConn, descriptor engine.Descriptor) {
	defer conn.Close()

	if !b.Admit(conn) {
		return
	}

	if authErr := b.Authenticate(conn); authErr != nil {
		return
	}

	b.ServeAuthorized(ctx, conn, descriptor)
}

// Authenticate runs the credential handshake on an admitted connection.
func (b *Bridge) Authenticate(conn *network.LineConn) error {
	if authErr := b.handshake.Run(conn); authErr != nil {
		b.logger.Warnf("auth failed for %s: %v", conn.RemoteIP(), authErr)
		return authErr
	}
	return nil
}

// ServeAuthorized runs the engine session for a connection that already
// passed the trust gate and auth, as the multiplexed listener does after its
// engine-selection exchange.
func (b *Bridge) ServeAuthorized(ctx context.Context, conn *network.LineConn, descriptor engine.Descriptor) {
	defer conn.Close()

	process, reattached, acquireErr := b.sessions.Acquire(descriptor.Name, descriptor.Path)
	if acquireErr != nil {
		b.logger.Errorf("engine %s unavailable: %v", descriptor.Name, acquireErr)
		return
	}
	defer b.sessions.Release(descriptor.Name, process, b.settings.Keepalive)

	b.stats.BridgeStarted()
	defer b.stats.BridgeEnded()
	b.logger.Printf("client %s connected to engine %s (reattached=%v)",
		conn.RemoteIP(), descriptor.Name, reattached)

	var comm *commLog
	if b.settings.LogUCI {
		comm = openCommLog(b.settings.LogDir, descriptor.Name, b.logger)
	}
	defer comm.Close()

	if initErr := b.initialize(conn, process, descriptor, comm); initErr != nil {
		b.logger.Errorf("engine %s initialization failed: %v", descriptor.Name, initErr)
		return
	}

	b.run(ctx, conn, process, descriptor, comm)
	b.logger.Printf("client %s disconnected from engine %s", conn.RemoteIP(), descriptor.Name)
}

// Admit applies the trust gate. Returns false when the connection must be
// dropped.
func (b *Bridge) Admit(conn *network.LineConn) bool {
	if !b.settings.TrustGate || b.filter == nil {
		return true
	}

	ip := conn.RemoteIP()
	if b.filter.Classifier().Trusted(ip) {
		return true
	}
	if b.settings.AutoTrust {
		if b.filter.Classifier().AutoTrust(ip) {
			b.logger.Printf("auto-trusting new source: %s", ip)
		}
		return true
	}

	b.logger.Warnf("rejecting untrusted connection from %s", ip)
	b.filter.RecordAttempt(ip)
	return false
}

// initialize sends uci plus the startup option substitutions and forwards
// engine output until uciok arrives. A silent engine is killed.
func (b *Bridge) initialize(conn *network.LineConn, process application.EngineProcess, descriptor engine.Descriptor, comm *commLog) error {
	if writeErr := process.WriteLine("uci"); writeErr != nil {
		return fmt.Errorf("failed to send uci: %w", writeErr)
	}
	comm.Client("uci")
	for _, line := range StartupOptions(descriptor.Overrides) {
		if writeErr := process.WriteLine(line); writeErr != nil {
			return fmt.Errorf("failed to send startup option: %w", writeErr)
		}
		comm.Client(line)
	}

	deadline := time.NewTimer(uciokTimeout)
	defer deadline.Stop()

	for {
		select {
		case line, ok := <-process.Lines():
			if !ok {
				return errors.New("engine exited before uciok")
			}
			if writeErr := conn.WriteLine(line); writeErr != nil {
				return fmt.Errorf("client write failed during handshake: %w", writeErr)
			}
			comm.Engine(line)
			b.stats.AddEngineToClient(len(line) + 1)
			if strings.Contains(line, "uciok") {
				return nil
			}
		case <-deadline.C:
			process.Kill()
			return errors.New("timed out waiting for uciok")
		}
	}
}

// run is the steady state: two copy loops plus heartbeat and watchdog, all
// cancelled together when any loop returns.
func (b *Bridge) run(ctx context.Context, conn *network.LineConn, process application.EngineProcess, descriptor engine.Descriptor, comm *commLog) {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var lastActivity atomic.Int64
	lastActivity.Store(time.Now().UnixNano())

	group, groupCtx := errgroup.WithContext(loopCtx)

	group.Go(func() error {
		defer cancel()
		return b.clientToEngine(groupCtx, conn, process, descriptor, &lastActivity, comm)
	})
	group.Go(func() error {
		defer cancel()
		return b.engineToClient(groupCtx, conn, process, descriptor.Name, comm)
	})
	group.Go(func() error {
		runHeartbeat(groupCtx, process, b.settings.HeartbeatInterval)
		return nil
	})
	group.Go(func() error {
		b.watchdog(groupCtx, cancel, descriptor.Name, &lastActivity)
		return nil
	})
	group.Go(func() error {
		// The client loop can sit in a blocking read for the full timeout;
		// closing the connection turns cancellation into an immediate read
		// error. Close is idempotent.
		<-groupCtx.Done()
		conn.Close()
		return nil
	})

	if waitErr := group.Wait(); waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		b.logger.Warnf("bridge for %s ended: %v", descriptor.Name, waitErr)
	}
}

func (b *Bridge) clientToEngine(ctx context.Context, conn *network.LineConn, process application.EngineProcess, descriptor engine.Descriptor, lastActivity *atomic.Int64, comm *commLog) error {
	for {
		line, readErr := conn.ReadLine(loopReadTimeout)
		if readErr != nil {
			if errors.Is(readErr, network.ErrReadTimeout) {
				select {
				case <-ctx.Done():
					return nil
				default:
					continue
				}
			}
			// Peer closed or reset; a clean end either way.
			return nil
		}

		lastActivity.Store(time.Now().UnixNano())
		line = RewriteSetOption(line, descriptor.Overrides, b.settings.GlobalOverrides)
		if writeErr := process.WriteLine(line); writeErr != nil {
			return fmt.Errorf("engine write failed: %w", writeErr)
		}
		comm.Client(line)
		if b.settings.DisplayUCI {
			b.logger.Printf("client -> %s: %s", descriptor.Name, line)
		}
		b.stats.AddClientToEngine(len(line) + 1)
	}
}

func (b *Bridge) engineToClient(ctx context.Context, conn *network.LineConn, process application.EngineProcess, engineName string, comm *commLog) error {
	throttler := throttle.NewThrottler(b.settings.ThrottleInterval)
	idle := time.NewTimer(loopReadTimeout)
	defer idle.Stop()

	for {
		idle.Reset(loopReadTimeout)
		select {
		case <-ctx.Done():
			return nil
		case <-idle.C:
			// Benign; the engine is simply quiet.
		case line, ok := <-process.Lines():
			if !ok {
				return errors.New("engine closed its output")
			}
			if !throttler.Offer(line) {
				continue
			}
			if writeErr := conn.WriteLine(line); writeErr != nil {
				return nil
			}
			comm.Engine(line)
			if b.settings.DisplayUCI {
				b.logger.Printf("%s -> client: %s", engineName, line)
			}
			b.stats.AddEngineToClient(len(line) + 1)
		}
	}
}

// watchdog closes the bridge when the client has been silent longer than the
// inactivity timeout, and periodically logs traffic totals.
func (b *Bridge) watchdog(ctx context.Context, cancel context.CancelFunc, name string, lastActivity *atomic.Int64) {
	ticker := time.NewTicker(inactivityPeriod)
	defer ticker.Stop()

	var sinceLog time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if b.settings.InactivityTimeout > 0 {
				idle := time.Since(time.Unix(0, lastActivity.Load()))
				if idle > b.settings.InactivityTimeout {
					b.logger.Warnf("closing bridge for %s after %s of inactivity", name, idle.Round(time.Second))
					cancel()
					return
				}
			}
			sinceLog += inactivityPeriod
			if b.settings.WatchdogInterval > 0 && sinceLog >= b.settings.WatchdogInterval {
				sinceLog = 0
				snap := b.stats.Snapshot()
				b.logger.Printf("traffic: %s in, %s out, %d active bridges",
					trafficstats.FormatTotal(snap.ClientToEngineTotal),
					trafficstats.FormatTotal(snap.EngineToClientTotal),
					snap.Bridges)
			}
		}
	}
}
