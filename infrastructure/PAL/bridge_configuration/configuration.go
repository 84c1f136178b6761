package bridge_configuration

// EngineDetails is one engine entry in the configuration document.
// CustomVariables maps UCI option names to either a substitute value or the
// literal "override", meaning the client's own value passes through.
type EngineDetails struct {
	Path            string            `json:"path"`
	Port            int               `json:"port"`
	CustomVariables map[string]string `json:"custom_variables,omitempty"`
}

type Configuration struct {
	Host           string                   `json:"host"`
	Engines        map[string]EngineDetails `json:"engines"`
	MaxConnections int                      `json:"max_connections"`
	TrustedSources []string                 `json:"trusted_sources"`
	TrustedSubnets []string                 `json:"trusted_subnets"`

	BaseLogDir               string `json:"base_log_dir"`
	DisplayUCICommunication  bool   `json:"display_uci_communication"`
	EnableTrustedSources     bool   `json:"enable_trusted_sources"`
	EnableAutoTrust          bool   `json:"enable_auto_trust"`
	EnableServerLog          bool   `json:"enable_server_log"`
	EnableUCILog             bool   `json:"enable_uci_log"`
	DetailedLogVerbosity     bool   `json:"detailed_log_verbosity"`
	EnableFirewallRules      bool   `json:"enable_firewall_rules"`
	EnableSubnetBlocking     bool   `json:"enable_firewall_subnet_blocking"`
	EnableIPBlocking         bool   `json:"enable_firewall_ip_blocking"`
	MaxConnectionAttempts    int    `json:"max_connection_attempts"`
	ConnectionAttemptPeriod  int    `json:"connection_attempt_period"`
	EnableSubnetAttemptBlock bool   `json:"enable_subnet_connection_attempt_blocking"`
	MaxSubnetAttempts        int    `json:"max_connection_attempts_from_untrusted_subnet"`
	LogUntrustedAttempts     bool   `json:"Log_untrusted_connection_attempts"`

	InactivityTimeout     int               `json:"inactivity_timeout"`
	HeartbeatTime         int               `json:"heartbeat_time"`
	WatchdogTimerInterval int               `json:"watchdog_timer_interval"`
	CustomVariables       map[string]string `json:"custom_variables"`

	EnableTLS   bool   `json:"enable_tls"`
	TLSCertPath string `json:"tls_cert_path"`
	TLSKeyPath  string `json:"tls_key_path"`

	AuthToken  string `json:"auth_token"`
	AuthMethod string `json:"auth_method"`
	PSKKey     string `json:"psk_key"`

	SessionKeepaliveTimeout int `json:"session_keepalive_timeout"`
	InfoThrottleMs          int `json:"info_throttle_ms"`

	EnableMDNS      bool   `json:"enable_mdns"`
	EngineDirectory string `json:"engine_directory"`

	EnableSinglePort bool   `json:"enable_single_port"`
	BasePort         int    `json:"base_port"`
	DefaultEngine    string `json:"default_engine"`

	EnableUPnP        bool `json:"enable_upnp"`
	UPnPLeaseDuration int  `json:"upnp_lease_duration"`

	RelayServerURL  string `json:"relay_server_url"`
	RelayServerPort int    `json:"relay_server_port"`
	ServerSecret    string `json:"server_secret"`

	PIDFile            string `json:"pid_file"`
	ConnectionFilePath string `json:"connection_file_path"`
}

// NewDefaultConfiguration carries the optional-key defaults. Required keys
// (host, engines, max_connections, trusted_sources, trusted_subnets) have no
// defaults; their absence is a validation error.
func NewDefaultConfiguration() *Configuration {
	return &Configuration{
		EnableTrustedSources:    true,
		EnableServerLog:         true,
		MaxConnectionAttempts:   5,
		ConnectionAttemptPeriod: 3600,
		MaxSubnetAttempts:       10,
		LogUntrustedAttempts:    true,
		InactivityTimeout:       900,
		HeartbeatTime:           300,
		WatchdogTimerInterval:   300,
		AuthMethod:              "token",
		BasePort:                9998,
		EnableUPnP:              true,
		UPnPLeaseDuration:       3600,
		RelayServerPort:         19000,
		PIDFile:                 "ucibridge.pid",
		ConnectionFilePath:      "connection.chessuci",
	}
}
