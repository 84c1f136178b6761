package host

import (
	"fmt"
	"io"

	"ucibridge/domain/engine"
	"ucibridge/infrastructure/PAL/bridge_configuration"
	"ucibridge/infrastructure/discovery"
	"ucibridge/infrastructure/network"
	"ucibridge/infrastructure/relay"
	"ucibridge/presentation/pairing"
)

// Pair resolves the pairing environment without starting any listeners and
// emits the artifacts: the QR code when withQR is set, and the connection
// file when the configuration names a path.
func (r *Runner) Pair(cfg *bridge_configuration.Configuration, raw []byte, out io.Writer, withQR bool) error {
	registry := discovery.BuildRegistry(cfg, raw, r.logger)
	if registry.Len() == 0 {
		return fmt.Errorf("no engines configured or discovered")
	}
	registry, resolveErr := discovery.ResolvePorts(registry, cfg.Host, r.logger)
	if resolveErr != nil {
		return resolveErr
	}

	secret, secretErr := bridge_configuration.EnsureServerSecret(r.manager, cfg)
	if secretErr != nil {
		return secretErr
	}

	env := pairing.Environment{
		LocalIP:       network.LocalIP(),
		Mappings:      r.requestMappings(cfg, registry),
		RelaySessions: relaySessionIDs(cfg, registry, secret),
	}
	if len(env.Mappings) == 0 {
		env.WANIP = network.WANIP()
	}

	if withQR {
		payload := pairing.BuildQRPayload(cfg, registry, env, r.logger)
		if printErr := pairing.PrintQR(out, payload); printErr != nil {
			return printErr
		}
	}

	if cfg.ConnectionFilePath != "" {
		doc := pairing.BuildConnectionFile(cfg, registry, env, r.logger)
		if writeErr := doc.Write(cfg.ConnectionFilePath); writeErr != nil {
			return writeErr
		}
		fmt.Fprintf(out, "Connection file written to: %s\n", cfg.ConnectionFilePath)
	}
	return nil
}

// relaySessionIDs derives the deterministic session ids clients will look
// for at the rendezvous server, one per engine or a single shared id in
// multiplex mode.
func relaySessionIDs(cfg *bridge_configuration.Configuration, registry *engine.Registry, secret string) map[string]string {
	if cfg.RelayServerURL == "" {
		return nil
	}
	sessions := make(map[string]string)
	if cfg.EnableSinglePort {
		sessions[relay.MultiplexLabel] = relay.SessionID(secret, relay.MultiplexLabel)
		return sessions
	}
	for _, descriptor := range registry.All() {
		sessions[descriptor.Name] = relay.SessionID(secret, descriptor.Name)
	}
	return sessions
}
