package host

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ucibridge/application"
	"ucibridge/application/logging"
	domainauth "ucibridge/domain/auth"
	"ucibridge/domain/engine"
	"ucibridge/infrastructure/PAL/bridge_configuration"
	"ucibridge/infrastructure/PAL/firewall"
	authinfra "ucibridge/infrastructure/auth"
	"ucibridge/infrastructure/bridge"
	"ucibridge/infrastructure/discovery"
	"ucibridge/infrastructure/listeners"
	"ucibridge/infrastructure/mdns"
	"ucibridge/infrastructure/network"
	"ucibridge/infrastructure/relay"
	"ucibridge/infrastructure/session"
	"ucibridge/infrastructure/telemetry/trafficstats"
	"ucibridge/infrastructure/trust"
	"ucibridge/infrastructure/upnp"
	"ucibridge/presentation/pairing"
)

// Runner wires the whole bridge host together and runs it until the context
// is cancelled.
type Runner struct {
	manager bridge_configuration.BridgeConfigurationManager
	logger  logging.Logger
}

func NewRunner(manager bridge_configuration.BridgeConfigurationManager, logger logging.Logger) *Runner {
	return &Runner{manager: manager, logger: logger}
}

// Run starts listeners, relay dialers and collaborators from the validated
// configuration, blocks until cancellation, and tears everything down.
func (r *Runner) Run(ctx context.Context, cfg *bridge_configuration.Configuration, raw []byte) error {
	registry := discovery.BuildRegistry(cfg, raw, r.logger)
	if registry.Len() == 0 {
		return fmt.Errorf("no engines configured or discovered")
	}

	registry, resolveErr := discovery.ResolvePorts(registry, cfg.Host, r.logger)
	if resolveErr != nil {
		return resolveErr
	}

	fw := firewall.Select(cfg.EnableFirewallRules, r.logger)
	if unblockErr := fw.UnblockTrusted(cfg.TrustedSources, cfg.TrustedSubnets); unblockErr != nil {
		r.logger.Errorf("failed to unblock trusted sources: %v", unblockErr)
	}
	if cfg.EnableFirewallRules {
		if configureErr := fw.Configure(enginePorts(registry, cfg), cfg.TrustedSources, cfg.TrustedSubnets); configureErr != nil {
			r.logger.Errorf("failed to configure firewall: %v", configureErr)
		}
	}

	classifier, classifierErr := trust.NewClassifier(cfg.TrustedSources, cfg.TrustedSubnets)
	if classifierErr != nil {
		return classifierErr
	}
	filter := trust.NewFilter(classifier, fw, trust.FilterSettings{
		MaxAttempts:       cfg.MaxConnectionAttempts,
		MaxSubnetAttempts: cfg.MaxSubnetAttempts,
		Period:            time.Duration(cfg.ConnectionAttemptPeriod) * time.Second,
		BlockIPs:          cfg.EnableIPBlocking,
		BlockSubnets:      cfg.EnableSubnetAttemptBlock && cfg.EnableSubnetBlocking,
		LogAttempts:       cfg.LogUntrustedAttempts,
		LogDir:            cfg.BaseLogDir,
		EnginePorts:       enginePorts(registry, cfg),
	}, r.logger)

	method, methodErr := domainauth.ParseMethod(cfg.AuthMethod)
	if methodErr != nil {
		return methodErr
	}
	handshake := authinfra.NewHandshake(method, cfg.AuthToken, cfg.PSKKey)

	tlsConfig, tlsErr := loadTLS(cfg)
	if tlsErr != nil {
		return tlsErr
	}

	secret, secretErr := bridge_configuration.EnsureServerSecret(r.manager, cfg)
	if secretErr != nil {
		return secretErr
	}

	sessions := session.NewManager(session.NewSpawner(), r.logger)
	stats := trafficstats.NewCollector(time.Second, 0.3)

	settings := bridge.Settings{
		TrustGate:         cfg.EnableTrustedSources,
		AutoTrust:         cfg.EnableAutoTrust,
		InactivityTimeout: time.Duration(cfg.InactivityTimeout) * time.Second,
		HeartbeatInterval: time.Duration(cfg.HeartbeatTime) * time.Second,
		ThrottleInterval:  time.Duration(cfg.InfoThrottleMs) * time.Millisecond,
		Keepalive:         time.Duration(cfg.SessionKeepaliveTimeout) * time.Second,
		WatchdogInterval:  time.Duration(cfg.WatchdogTimerInterval) * time.Second,
		GlobalOverrides:   engine.NewOverrideMap(cfg.CustomVariables),
		LogUCI:            cfg.EnableUCILog,
		DisplayUCI:        cfg.DisplayUCICommunication || cfg.DetailedLogVerbosity,
		LogDir:            cfg.BaseLogDir,
	}
	listenerBridge := bridge.New(sessions, filter, handshake, stats, settings, r.logger)

	// Relay peers reach us through the rendezvous server, so their socket
	// address is never the true client; the session id is the gate there.
	relaySettings := settings
	relaySettings.TrustGate = false
	relayBridge := bridge.New(sessions, filter, handshake, stats, relaySettings, r.logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		stats.Start(groupCtx)
		return nil
	})

	if cfg.EnableSinglePort {
		mux := listeners.NewMultiplexListener(cfg.Host, cfg.BasePort, tlsConfig,
			listenerBridge, registry, cfg.DefaultEngine, cfg.MaxConnections, r.logger)
		group.Go(func() error {
			if runErr := mux.Run(groupCtx); runErr != nil {
				r.logger.Errorf("%v", runErr)
			}
			return nil
		})
	} else {
		for _, descriptor := range registry.All() {
			listener := listeners.NewEngineListener(cfg.Host, tlsConfig, listenerBridge, cfg.MaxConnections, r.logger)
			group.Go(func() error {
				if runErr := listener.Run(groupCtx, descriptor); runErr != nil {
					r.logger.Errorf("%v", runErr)
				}
				return nil
			})
		}
	}

	relaySessions := r.startRelay(groupCtx, group, cfg, registry, relayBridge, secret)
	mappings := r.requestMappings(cfg, registry)

	if len(mappings) > 0 && cfg.EnableUPnP {
		mapper := upnp.NewMapper(r.logger)
		all := make([]application.Mapping, 0, len(mappings))
		for _, mapping := range mappings {
			all = append(all, mapping)
		}
		group.Go(func() error {
			upnp.RunRenewal(groupCtx, mapper, all, cfg.UPnPLeaseDuration, r.logger)
			return nil
		})
	}

	shutdownMDNS := r.advertise(cfg, registry)

	env := pairing.Environment{
		LocalIP:       network.LocalIP(),
		Mappings:      mappings,
		RelaySessions: relaySessions,
	}
	if len(mappings) == 0 {
		env.WANIP = network.WANIP()
	}
	if cfg.ConnectionFilePath != "" {
		doc := pairing.BuildConnectionFile(cfg, registry, env, r.logger)
		if writeErr := doc.Write(cfg.ConnectionFilePath); writeErr != nil {
			r.logger.Warnf("%v", writeErr)
		} else {
			r.logger.Printf("connection file written to %s", cfg.ConnectionFilePath)
		}
	}

	r.logSummary(cfg, registry, env)

	<-runCtx.Done()

	shutdownMDNS()
	sessions.ShutdownAll()
	cancel()
	_ = group.Wait()
	return nil
}

// startRelay launches one dialer per engine, or a single shared dialer in
// multiplex mode, and returns the session ids by label.
func (r *Runner) startRelay(ctx context.Context, group *errgroup.Group, cfg *bridge_configuration.Configuration, registry *engine.Registry, relayBridge *bridge.Bridge, secret string) map[string]string {
	if cfg.RelayServerURL == "" {
		return nil
	}
	address := fmt.Sprintf("%s:%d", cfg.RelayServerURL, cfg.RelayServerPort)
	sessions := make(map[string]string)

	if cfg.EnableSinglePort {
		// Paired multiplex connections negotiate their engine the same way
		// accepted ones do, just without a listening socket.
		relayMux := listeners.NewMultiplexListener(cfg.Host, cfg.BasePort, nil,
			relayBridge, registry, cfg.DefaultEngine, 0, r.logger)
		sessions[relay.MultiplexLabel] = relay.SessionID(secret, relay.MultiplexLabel)
		dialer := relay.NewDialer(address, secret, relayMux.Handle, r.logger)
		group.Go(func() error {
			dialer.Run(ctx, relay.MultiplexLabel)
			return nil
		})
		r.logger.Printf("relay leg started for multiplex slot via %s", address)
		return sessions
	}

	for _, descriptor := range registry.All() {
		sessions[descriptor.Name] = relay.SessionID(secret, descriptor.Name)
		dialer := relay.NewDialer(address, secret, func(legCtx context.Context, conn *network.LineConn) {
			relayBridge.Serve(legCtx, conn, descriptor)
		}, r.logger)
		group.Go(func() error {
			dialer.Run(ctx, descriptor.Name)
			return nil
		})
		r.logger.Printf("relay leg started for %s via %s", descriptor.Name, address)
	}
	return sessions
}

// requestMappings asks the gateway for one mapping per engine, or a single
// shared one in multiplex mode. Failures downgrade to LAN-only operation.
func (r *Runner) requestMappings(cfg *bridge_configuration.Configuration, registry *engine.Registry) map[string]application.Mapping {
	var mapper application.PortMapper
	if cfg.EnableUPnP {
		mapper = upnp.NewMapper(r.logger)
	} else {
		mapper = upnp.NewNoop(r.logger)
	}

	localIP := network.LocalIP()
	mappings := make(map[string]application.Mapping)

	if cfg.EnableSinglePort {
		mapping, mapErr := mapper.Map(cfg.BasePort, localIP, "Chess-UCI-Bridge", cfg.UPnPLeaseDuration)
		if mapErr != nil {
			r.logger.Warnf("UPnP mapping failed: %v", mapErr)
		} else if mapping.ExternalIP != "" {
			mappings[pairing.MultiplexMappingKey] = mapping
		}
		return mappings
	}

	for _, descriptor := range registry.All() {
		mapping, mapErr := mapper.Map(descriptor.Port, localIP,
			fmt.Sprintf("Chess-UCI-Bridge %s", descriptor.Name), cfg.UPnPLeaseDuration)
		if mapErr != nil {
			r.logger.Warnf("UPnP mapping for %s failed: %v", descriptor.Name, mapErr)
			continue
		}
		if mapping.ExternalIP != "" {
			mappings[descriptor.Name] = mapping
		}
	}
	return mappings
}

// advertise registers mDNS services and returns a combined shutdown
// function.
func (r *Runner) advertise(cfg *bridge_configuration.Configuration, registry *engine.Registry) func() {
	var advertiser application.Advertiser
	if cfg.EnableMDNS {
		advertiser = mdns.NewAdvertiser(r.logger)
	} else {
		return func() {}
	}

	var shutdowns []func()
	if cfg.EnableSinglePort {
		txt := map[string]string{"mode": "multiplex", "engines": fmt.Sprintf("%d", registry.Len())}
		if shutdown, advErr := advertiser.Advertise("Chess UCI Bridge", cfg.BasePort, txt); advErr != nil {
			r.logger.Warnf("mDNS registration failed: %v", advErr)
		} else {
			shutdowns = append(shutdowns, shutdown)
		}
	} else {
		for _, descriptor := range registry.All() {
			txt := map[string]string{"engine": descriptor.Name}
			if shutdown, advErr := advertiser.Advertise(descriptor.Name, descriptor.Port, txt); advErr != nil {
				r.logger.Warnf("mDNS registration for %s failed: %v", descriptor.Name, advErr)
			} else {
				shutdowns = append(shutdowns, shutdown)
			}
		}
	}

	return func() {
		for _, shutdown := range shutdowns {
			shutdown()
		}
	}
}

func (r *Runner) logSummary(cfg *bridge_configuration.Configuration, registry *engine.Registry, env pairing.Environment) {
	r.logger.Printf("bridge host ready on %s (%d engines, tls=%v, auth=%s)",
		cfg.Host, registry.Len(), cfg.EnableTLS, cfg.AuthMethod)
	for _, descriptor := range registry.All() {
		port := descriptor.Port
		if cfg.EnableSinglePort {
			port = cfg.BasePort
		}
		r.logger.Printf("engine %s -> %s:%d", descriptor.Name, env.LocalIP, port)
	}
	if env.WANIP != "" {
		r.logger.Printf("external address: %s", env.WANIP)
	}
	if cfg.RelayServerURL != "" && len(env.RelaySessions) > 0 {
		r.logger.Printf("relay: %s:%d (%d sessions)", cfg.RelayServerURL, cfg.RelayServerPort, len(env.RelaySessions))
	}
}

// enginePorts renders the comma-separated port list firewall rules scope to.
func enginePorts(registry *engine.Registry, cfg *bridge_configuration.Configuration) string {
	if cfg.EnableSinglePort {
		return fmt.Sprintf("%d", cfg.BasePort)
	}
	ports := ""
	for i, descriptor := range registry.All() {
		if i > 0 {
			ports += ","
		}
		ports += fmt.Sprintf("%d", descriptor.Port)
	}
	return ports
}

// loadTLS builds the server TLS context, minimum version 1.2.
func loadTLS(cfg *bridge_configuration.Configuration) (*tls.Config, error) {
	if !cfg.EnableTLS {
		return nil, nil
	}
	certificate, loadErr := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath)
	if loadErr != nil {
		return nil, fmt.Errorf("failed to load TLS materials: %w", loadErr)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{certificate},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
