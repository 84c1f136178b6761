package bridge_configuration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
)

// requiredKeys maps required document keys to the JSON kind they must carry.
var requiredKeys = map[string]string{
	"host":            "string",
	"engines":         "object",
	"max_connections": "number",
	"trusted_sources": "array",
	"trusted_subnets": "array",
}

// Validate checks the raw document and the decoded configuration, returning
// every violation found rather than stopping at the first.
func Validate(raw []byte, cfg *Configuration) []string {
	var violations []string

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return []string{fmt.Sprintf("configuration is not a JSON object: %v", err)}
	}

	for key, kind := range requiredKeys {
		value, present := doc[key]
		if !present {
			violations = append(violations, fmt.Sprintf("missing required config key: %q", key))
			continue
		}
		if got := jsonKind(value); got != kind {
			violations = append(violations, fmt.Sprintf("config key %q must be %s, got %s", key, kind, got))
		}
	}

	violations = append(violations, validateEngines(cfg)...)

	for _, ip := range cfg.TrustedSources {
		if _, err := netip.ParseAddr(ip); err != nil {
			violations = append(violations, fmt.Sprintf("invalid IP in trusted_sources: %q", ip))
		}
	}
	for _, subnet := range cfg.TrustedSubnets {
		if _, err := netip.ParsePrefix(subnet); err != nil {
			violations = append(violations, fmt.Sprintf("invalid subnet in trusted_subnets: %q", subnet))
		}
	}

	if _, present := doc["max_connections"]; present && cfg.MaxConnections < 1 {
		violations = append(violations, "max_connections must be >= 1")
	}
	if cfg.InactivityTimeout < 0 {
		violations = append(violations, "inactivity_timeout must be >= 0")
	}

	if cfg.EnableTLS {
		violations = append(violations, validateTLS(cfg)...)
	}

	if cfg.ServerSecret != "" && len(cfg.ServerSecret) < 32 {
		violations = append(violations, "server_secret must be at least 32 characters")
	}

	if cfg.DefaultEngine != "" {
		if _, ok := cfg.Engines[cfg.DefaultEngine]; !ok {
			violations = append(violations, fmt.Sprintf("default_engine %q not found in engines", cfg.DefaultEngine))
		}
	}

	return violations
}

func validateEngines(cfg *Configuration) []string {
	var violations []string
	seenPorts := make(map[int]string)
	for _, name := range EngineNames(cfg.Engines) {
		details := cfg.Engines[name]
		if details.Path == "" {
			violations = append(violations, fmt.Sprintf("engine %q missing required key 'path'", name))
		} else if info, statErr := os.Stat(details.Path); statErr != nil {
			violations = append(violations, fmt.Sprintf("engine %q path does not exist: %q", name, details.Path))
		} else if info.Mode()&0o111 == 0 {
			violations = append(violations, fmt.Sprintf("engine %q path is not executable: %q", name, details.Path))
		}

		if details.Port == 0 {
			violations = append(violations, fmt.Sprintf("engine %q missing required key 'port'", name))
			continue
		}
		if details.Port < 1 || details.Port > 65535 {
			violations = append(violations, fmt.Sprintf("engine %q port %d out of range", name, details.Port))
			continue
		}
		if other, clash := seenPorts[details.Port]; clash {
			violations = append(violations,
				fmt.Sprintf("port conflict: engines %q and %q both use port %d", other, name, details.Port))
		}
		seenPorts[details.Port] = name
	}
	return violations
}

func validateTLS(cfg *Configuration) []string {
	var violations []string
	if cfg.TLSCertPath == "" {
		violations = append(violations, "enable_tls is true but tls_cert_path is empty")
	} else if _, err := os.Stat(cfg.TLSCertPath); err != nil {
		violations = append(violations, fmt.Sprintf("TLS certificate not found: %q", cfg.TLSCertPath))
	}
	if cfg.TLSKeyPath == "" {
		violations = append(violations, "enable_tls is true but tls_key_path is empty")
	} else if _, err := os.Stat(cfg.TLSKeyPath); err != nil {
		violations = append(violations, fmt.Sprintf("TLS key not found: %q", cfg.TLSKeyPath))
	}
	return violations
}

func jsonKind(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "empty"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "bool"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
