package pairing

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"ucibridge/application/logging"
	"ucibridge/domain/engine"
	"ucibridge/infrastructure/PAL/bridge_configuration"
	"ucibridge/infrastructure/relay"
)

// Endpoint is one way to reach an engine.
type Endpoint struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	SessionID string `json:"session_id,omitempty"`
}

// FileEngine is one engine record in the connection file, with every known
// endpoint (lan, upnp, wan, relay).
type FileEngine struct {
	Name      string              `json:"name"`
	Port      int                 `json:"port"`
	MDNSName  string              `json:"mdns_name"`
	Endpoints map[string]Endpoint `json:"endpoints"`
}

// Security is the connection file's credential block.
type Security struct {
	TLS         bool   `json:"tls"`
	AuthMethod  string `json:"auth_method"`
	Token       string `json:"token"`
	PSK         string `json:"psk"`
	Fingerprint string `json:"fingerprint"`
}

// ConnectionFile is the full zero-config import document.
type ConnectionFile struct {
	Version          int          `json:"version"`
	Type             string       `json:"type"`
	Created          string       `json:"created"`
	ServerName       string       `json:"server_name"`
	Engines          []FileEngine `json:"engines"`
	Security         Security     `json:"security"`
	SinglePort       bool         `json:"single_port,omitempty"`
	Port             int          `json:"port,omitempty"`
	AvailableEngines []string     `json:"available_engines,omitempty"`
}

// BuildConnectionFile assembles the connection document.
func BuildConnectionFile(cfg *bridge_configuration.Configuration, registry *engine.Registry, env Environment, logger logging.Logger) *ConnectionFile {
	engines := make([]FileEngine, 0, registry.Len())
	for _, descriptor := range registry.All() {
		port := descriptor.Port
		if cfg.EnableSinglePort {
			port = cfg.BasePort
		}

		entry := FileEngine{
			Name:     descriptor.Name,
			Port:     port,
			MDNSName: descriptor.Name,
			Endpoints: map[string]Endpoint{
				"lan": {Host: env.LocalIP, Port: port},
			},
		}

		mappingKey := descriptor.Name
		relayKey := descriptor.Name
		if cfg.EnableSinglePort {
			mappingKey = MultiplexMappingKey
			relayKey = relay.MultiplexLabel
		}

		if mapping, mapped := env.Mappings[mappingKey]; mapped && mapping.ExternalIP != "" {
			entry.Endpoints["upnp"] = Endpoint{Host: mapping.ExternalIP, Port: mapping.ExternalPort}
		} else if env.WANIP != "" {
			entry.Endpoints["wan"] = Endpoint{Host: env.WANIP, Port: port}
		}

		if id, found := env.RelaySessions[relayKey]; found && cfg.RelayServerURL != "" {
			entry.Endpoints["relay"] = Endpoint{
				Host:      cfg.RelayServerURL,
				Port:      cfg.RelayServerPort,
				SessionID: id,
			}
		}

		engines = append(engines, entry)
	}

	fingerprint := ""
	if cfg.EnableTLS && cfg.TLSCertPath != "" {
		fp, fpErr := CertFingerprint(cfg.TLSCertPath)
		if fpErr != nil {
			logger.Warnf("certificate fingerprint unavailable: %v", fpErr)
		} else {
			fingerprint = fp
		}
	}

	doc := &ConnectionFile{
		Version:    1,
		Type:       payloadType,
		Created:    time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		ServerName: fmt.Sprintf("Chess Server (%s)", env.LocalIP),
		Engines:    engines,
		Security: Security{
			TLS:         cfg.EnableTLS,
			AuthMethod:  effectiveAuthMethod(cfg),
			Token:       cfg.AuthToken,
			PSK:         cfg.PSKKey,
			Fingerprint: fingerprint,
		},
	}

	if cfg.EnableSinglePort {
		doc.SinglePort = true
		doc.Port = cfg.BasePort
		names := make([]string, 0, registry.Len())
		for _, descriptor := range registry.All() {
			names = append(names, descriptor.Name)
		}
		sort.Strings(names)
		doc.AvailableEngines = names
	}

	return doc
}

// Write stores the document at path with indentation for human inspection.
func (c *ConnectionFile) Write(path string) error {
	data, marshalErr := json.MarshalIndent(c, "", "  ")
	if marshalErr != nil {
		return fmt.Errorf("failed to encode connection file: %w", marshalErr)
	}
	if writeErr := os.WriteFile(path, data, 0o600); writeErr != nil {
		return fmt.Errorf("failed to write connection file: %w", writeErr)
	}
	return nil
}
