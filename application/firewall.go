package application

// Firewall is the platform firewall collaborator. Implementations shell out
// to platform tooling; a no-op implementation is used when the feature is
// disabled or the platform has no supported backend.
type Firewall interface {
	BlockIP(ip string, ports string) error
	BlockSubnet(subnet string, ports string) error
	UnblockTrusted(trustedIPs []string, trustedSubnets []string) error
	Configure(ports string, trustedIPs []string, trustedSubnets []string) error
}
