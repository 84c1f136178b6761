package discovery

import (
	"fmt"

	"ucibridge/application/logging"
	"ucibridge/domain/engine"
	"ucibridge/infrastructure/PAL/bridge_configuration"
	"ucibridge/infrastructure/network"
)

// BuildRegistry merges explicit configuration engines with auto-discovered
// ones. Explicit engines keep their configured ports and win name clashes;
// discovered engines get sequential ports after the highest explicit port
// (or after base_port when no explicit ports exist).
func BuildRegistry(cfg *bridge_configuration.Configuration, raw []byte, logger logging.Logger) *engine.Registry {
	registry := engine.NewRegistry()

	order, orderErr := bridge_configuration.EngineOrder(raw)
	if orderErr != nil {
		// A validated configuration should never land here; keep going with
		// lexical order rather than refusing to start.
		logger.Warnf("could not read engine document order: %v", orderErr)
		order = bridge_configuration.EngineNames(cfg.Engines)
	}
	for _, name := range order {
		details, ok := cfg.Engines[name]
		if !ok {
			continue
		}
		registry.Add(engine.Descriptor{
			Name:      name,
			Path:      details.Path,
			Port:      details.Port,
			Overrides: engine.NewOverrideMap(details.CustomVariables),
		})
	}

	if cfg.EngineDirectory == "" {
		return registry
	}

	nextPort := cfg.BasePort - 1
	for _, descriptor := range registry.All() {
		if descriptor.Port > nextPort {
			nextPort = descriptor.Port
		}
	}
	nextPort++

	for _, candidate := range DiscoverEngines(cfg.EngineDirectory) {
		if registry.Has(candidate.Name) {
			continue
		}
		registry.Add(engine.Descriptor{
			Name: candidate.Name,
			Path: candidate.Path,
			Port: nextPort,
		})
		logger.Printf("auto-discovered engine: %s -> port %d", candidate.Name, nextPort)
		nextPort++
	}

	return registry
}

// ResolvePorts probes every descriptor's port and rewrites occupied ones to
// the next free port in range. The claimed set keeps two descriptors from
// landing on the same port before their listeners start.
func ResolvePorts(registry *engine.Registry, host string, logger logging.Logger) (*engine.Registry, error) {
	resolved := engine.NewRegistry()
	claimed := make(map[int]bool)

	for _, descriptor := range registry.All() {
		port, findErr := network.FindAvailablePort(host, descriptor.Port, claimed)
		if findErr != nil {
			return nil, fmt.Errorf("no port for engine %s: %w", descriptor.Name, findErr)
		}
		if port != descriptor.Port {
			logger.Warnf("port %d busy; engine %s moved to %d", descriptor.Port, descriptor.Name, port)
		}
		claimed[port] = true
		resolved.Add(descriptor.WithPort(port))
	}
	return resolved, nil
}
