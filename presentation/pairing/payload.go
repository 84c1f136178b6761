package pairing

import (
	"encoding/json"
	"fmt"

	"ucibridge/application"
	"ucibridge/application/logging"
	"ucibridge/domain/engine"
	"ucibridge/infrastructure/PAL/bridge_configuration"
	"ucibridge/infrastructure/relay"
)

const payloadType = "chess-uci-server"

// EngineEntry is one engine in the QR payload.
type EngineEntry struct {
	Name         string `json:"name"`
	Port         int    `json:"port"`
	MDNSName     string `json:"mdns_name"`
	RelaySession string `json:"relay_session,omitempty"`
}

// RelayInfo points clients at the rendezvous server.
type RelayInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// QRPayload is the compact JSON object encoded into the pairing QR code.
type QRPayload struct {
	Type         string         `json:"type"`
	Host         string         `json:"host"`
	Engines      []*EngineEntry `json:"engines"`
	TLS          bool           `json:"tls"`
	Token        string         `json:"token"`
	AuthMethod   string         `json:"auth_method"`
	SinglePort   bool           `json:"single_port,omitempty"`
	Port         int            `json:"port,omitempty"`
	PSK          string         `json:"psk,omitempty"`
	Fingerprint  string         `json:"fingerprint,omitempty"`
	ExternalHost string         `json:"external_host,omitempty"`
	Relay        *RelayInfo     `json:"relay,omitempty"`
}

// MultiplexMappingKey keys the shared port mapping in single-port mode.
const MultiplexMappingKey = "_server"

// Environment carries the resolved network facts the payload builders need.
// Mappings is keyed by engine name, or MultiplexMappingKey for the shared
// single-port mapping; RelaySessions by engine name or relay.MultiplexLabel.
type Environment struct {
	LocalIP       string
	WANIP         string
	Mappings      map[string]application.Mapping
	RelaySessions map[string]string
}

// effectiveAuthMethod downgrades a default token method to none when no
// credentials exist, so clients skip the handshake they would fail.
func effectiveAuthMethod(cfg *bridge_configuration.Configuration) string {
	if cfg.AuthMethod == "token" && cfg.AuthToken == "" && !cfg.EnableTLS {
		return "none"
	}
	return cfg.AuthMethod
}

// BuildQRPayload assembles the pairing payload from the resolved registry
// and environment.
func BuildQRPayload(cfg *bridge_configuration.Configuration, registry *engine.Registry, env Environment, logger logging.Logger) *QRPayload {
	engines := make([]*EngineEntry, 0, registry.Len())
	for _, descriptor := range registry.All() {
		engines = append(engines, &EngineEntry{
			Name:     descriptor.Name,
			Port:     descriptor.Port,
			MDNSName: descriptor.Name,
		})
	}

	payload := &QRPayload{
		Type:       payloadType,
		Host:       env.LocalIP,
		Engines:    engines,
		TLS:        cfg.EnableTLS,
		Token:      cfg.AuthToken,
		AuthMethod: effectiveAuthMethod(cfg),
	}

	if cfg.EnableSinglePort {
		payload.SinglePort = true
		payload.Port = cfg.BasePort
		for _, entry := range engines {
			entry.Port = cfg.BasePort
		}
	}

	if payload.AuthMethod == "psk" && cfg.PSKKey != "" {
		payload.PSK = cfg.PSKKey
	}

	if cfg.EnableTLS && cfg.TLSCertPath != "" {
		fingerprint, fpErr := CertFingerprint(cfg.TLSCertPath)
		if fpErr != nil {
			logger.Warnf("certificate fingerprint unavailable: %v", fpErr)
		} else {
			payload.Fingerprint = fingerprint
		}
	}

	for _, mapping := range env.Mappings {
		if mapping.ExternalIP != "" {
			payload.ExternalHost = mapping.ExternalIP
			break
		}
	}
	if payload.ExternalHost == "" && env.WANIP != "" {
		payload.ExternalHost = env.WANIP
	}

	if cfg.RelayServerURL != "" && len(env.RelaySessions) > 0 {
		payload.Relay = &RelayInfo{Host: cfg.RelayServerURL, Port: cfg.RelayServerPort}
		if shared, ok := env.RelaySessions[relay.MultiplexLabel]; cfg.EnableSinglePort && ok {
			for _, entry := range engines {
				entry.RelaySession = shared
			}
		} else {
			for _, entry := range engines {
				if id, found := env.RelaySessions[entry.Name]; found {
					entry.RelaySession = id
				}
			}
		}
	}

	return payload
}

// Encode renders the payload as the compact JSON the QR code carries.
func (p *QRPayload) Encode() (string, error) {
	data, marshalErr := json.Marshal(p)
	if marshalErr != nil {
		return "", fmt.Errorf("failed to encode pairing payload: %w", marshalErr)
	}
	return string(data), nil
}
