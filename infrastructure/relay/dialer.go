package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"ucibridge/application/logging"
	"ucibridge/infrastructure/network"
)

const (
	keepaliveCeiling = 300 * time.Second
	reconnectPause   = 10 * time.Second
)

// Handler serves one paired relay connection. The per-engine legs bridge
// straight to their engine; the multiplex leg runs the engine-selection
// exchange first.
type Handler func(ctx context.Context, conn *network.LineConn)

// Dialer maintains one outbound leg to the rendezvous server. It registers
// under a deterministic session id, waits for a client to pair, hands the
// paired connection to its handler, and re-registers. The keepalive ceiling
// bounds how long one idle registration lives so NAT table drops cannot
// strand the slot silently.
type Dialer struct {
	address string
	secret  string
	serve   Handler
	logger  logging.Logger
}

func NewDialer(address, secret string, serve Handler, logger logging.Logger) *Dialer {
	return &Dialer{
		address: address,
		secret:  secret,
		serve:   serve,
		logger:  logger,
	}
}

// Run loops until the context is cancelled. label is the engine name, or
// MultiplexLabel for the shared multiplex slot.
func (d *Dialer) Run(ctx context.Context, label string) {
	id := SessionID(d.secret, label)

	for {
		if cycleErr := d.cycle(ctx, id, label); cycleErr != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Warnf("relay leg for %s: %v", label, cycleErr)
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectPause):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// cycle is one register-pair-serve round. A nil return means the round
// ended normally (keepalive recycle or a finished session) and the caller
// should re-register immediately.
func (d *Dialer) cycle(ctx context.Context, id, label string) error {
	var dialer net.Dialer
	rawConn, dialErr := dialer.DialContext(ctx, "tcp", d.address)
	if dialErr != nil {
		return fmt.Errorf("failed to dial rendezvous: %w", dialErr)
	}
	conn := network.NewLineConn(rawConn)

	if writeErr := conn.WriteLine(fmt.Sprintf("SESSION %s server", id)); writeErr != nil {
		conn.Close()
		return fmt.Errorf("failed to register: %w", writeErr)
	}

	reply, readErr := conn.ReadLine(keepaliveCeiling)
	if readErr != nil {
		conn.Close()
		return fmt.Errorf("failed to read registration reply: %w", readErr)
	}
	if strings.HasPrefix(reply, "ERROR") {
		conn.Close()
		return fmt.Errorf("rendezvous rejected registration: %s", reply)
	}
	if reply != "REGISTERED" {
		conn.Close()
		return fmt.Errorf("unexpected registration reply: %q", reply)
	}

	reply, readErr = conn.ReadLine(keepaliveCeiling)
	if readErr != nil {
		// Keepalive ceiling elapsed or the server went away. Recycle the
		// registration.
		conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(readErr, network.ErrReadTimeout) {
			return nil
		}
		return fmt.Errorf("failed while awaiting pairing: %w", readErr)
	}
	if reply != "PAIRED" {
		conn.Close()
		return fmt.Errorf("unexpected pairing reply: %q", reply)
	}

	d.logger.Printf("relay client paired on slot %s", label)
	// The peer address is the rendezvous server, so the trust gate is off on
	// the serving side; the session id is the admission control here.
	d.serve(ctx, conn)
	return nil
}
