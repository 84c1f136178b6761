package firewall

import (
	"ucibridge/application"
	"ucibridge/application/logging"
)

// Noop satisfies the firewall contract without touching the platform. Used
// when firewall rules are disabled or the platform has no supported backend.
type Noop struct {
	logger logging.Logger
}

func NewNoop(logger logging.Logger) application.Firewall {
	return &Noop{logger: logger}
}

func (n *Noop) BlockIP(ip string, ports string) error {
	n.logger.Printf("firewall noop: would block IP %s on ports %s", ip, ports)
	return nil
}

func (n *Noop) BlockSubnet(subnet string, ports string) error {
	n.logger.Printf("firewall noop: would block subnet %s on ports %s", subnet, ports)
	return nil
}

func (n *Noop) UnblockTrusted([]string, []string) error {
	return nil
}

func (n *Noop) Configure(string, []string, []string) error {
	return nil
}
