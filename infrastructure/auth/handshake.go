package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"ucibridge/domain/auth"
	"ucibridge/infrastructure/network"
)

const (
	greetingTokenOnly = "AUTH_REQUIRED"
	replyOK           = "AUTH_OK"
	replyFail         = "AUTH_FAIL"

	handshakeTimeout = 10 * time.Second
)

var ErrAuthFailed = errors.New("authentication failed")

// Handshake runs the server side of the credential exchange on a fresh
// client connection. With no credentials configured it is a no-op.
type Handshake struct {
	method auth.Method
	token  string
	psk    string
}

func NewHandshake(method auth.Method, token, psk string) *Handshake {
	return &Handshake{method: method, token: token, psk: psk}
}

// Required reports whether this handshake will challenge clients at all.
func (h *Handshake) Required() bool {
	return (h.method.UsesToken() && h.token != "") ||
		(h.method.UsesPSK() && h.psk != "")
}

// Run performs the challenge and verifies the client response. On failure the
// client has already been sent AUTH_FAIL; the caller closes the connection.
func (h *Handshake) Run(conn *network.LineConn) error {
	if !h.Required() {
		return nil
	}

	if writeErr := conn.WriteLine(h.greeting()); writeErr != nil {
		return fmt.Errorf("failed to send auth challenge: %w", writeErr)
	}

	line, readErr := conn.ReadLine(handshakeTimeout)
	if readErr != nil {
		return fmt.Errorf("failed to read auth response: %w", readErr)
	}

	if h.verify(line) {
		if writeErr := conn.WriteLine(replyOK); writeErr != nil {
			return fmt.Errorf("failed to confirm auth: %w", writeErr)
		}
		return nil
	}

	_ = conn.WriteLine(replyFail)
	return ErrAuthFailed
}

// greeting advertises the accepted methods. Token-only keeps the bare legacy
// form so older clients that expect exactly AUTH_REQUIRED still pair.
func (h *Handshake) greeting() string {
	tokenEnabled := h.method.UsesToken() && h.token != ""
	pskEnabled := h.method.UsesPSK() && h.psk != ""

	if tokenEnabled && !pskEnabled {
		return greetingTokenOnly
	}

	var methods []string
	if tokenEnabled {
		methods = append(methods, "token")
	}
	if pskEnabled {
		methods = append(methods, "psk")
	}
	return greetingTokenOnly + " " + strings.Join(methods, ",")
}

func (h *Handshake) verify(line string) bool {
	if h.method.UsesToken() && h.token != "" {
		if secret, ok := strings.CutPrefix(line, "AUTH "); ok {
			return constantTimeEqual(secret, h.token)
		}
	}
	if h.method.UsesPSK() && h.psk != "" {
		if secret, ok := strings.CutPrefix(line, "PSK_AUTH "); ok {
			return constantTimeEqual(secret, h.psk)
		}
	}
	return false
}

func constantTimeEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
