package firewall

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"ucibridge/application"
	"ucibridge/application/logging"
	"ucibridge/infrastructure/PAL/exec_commander"
	"ucibridge/infrastructure/network"
)

const (
	blockIPsRule    = "Chess-Block-IPs"
	blockOtherRule  = "Chess-Block-Other"
	netshExecutable = "netsh"
)

var remoteIPPattern = regexp.MustCompile(`RemoteIP:\s*(.*)`)

// Netsh drives the Windows Advanced Firewall through netsh shell-outs.
// Blocked addresses accumulate in two named rules: one for individual IPs,
// one for subnets.
type Netsh struct {
	commander exec_commander.Commander
	logger    logging.Logger
}

func NewNetsh(commander exec_commander.Commander, logger logging.Logger) application.Firewall {
	return &Netsh{commander: commander, logger: logger}
}

func (f *Netsh) BlockIP(ip string, ports string) error {
	addr, parseErr := netip.ParseAddr(ip)
	if parseErr != nil {
		return fmt.Errorf("invalid IP %q: %w", ip, parseErr)
	}
	if !isGlobal(addr) {
		f.logger.Warnf("skipping blocking of non-global IP: %s", ip)
		return nil
	}
	return f.appendRemote(blockIPsRule, ip, ports)
}

func (f *Netsh) BlockSubnet(subnet string, ports string) error {
	prefix, parseErr := netip.ParsePrefix(subnet)
	if parseErr != nil {
		return fmt.Errorf("invalid subnet %q: %w", subnet, parseErr)
	}
	if !isGlobal(prefix.Addr()) {
		f.logger.Warnf("skipping blocking of non-global subnet: %s", subnet)
		return nil
	}
	return f.appendRemote(blockOtherRule, subnet, ports)
}

// appendRemote adds one remote address to a named rule, creating the rule on
// first use.
func (f *Netsh) appendRemote(rule, remote, ports string) error {
	existing, found := f.showRemoteIPs(rule)
	if found {
		for _, entry := range existing {
			if entry == remote {
				f.logger.Printf("%s already blocked in %s", remote, rule)
				return nil
			}
		}
		updated := strings.Join(append(existing, remote), ",")
		output, setErr := f.commander.CombinedOutput(netshExecutable,
			"advfirewall", "firewall", "set", "rule", "name="+rule,
			"new", "remoteip="+updated)
		if setErr != nil {
			return fmt.Errorf("failed to update %s: %v, output: %s", rule, setErr, output)
		}
		f.logger.Printf("added %s to %s", remote, rule)
		return nil
	}

	output, addErr := f.commander.CombinedOutput(netshExecutable,
		"advfirewall", "firewall", "add", "rule", "name="+rule,
		"dir=in", "action=block", "protocol=TCP", "localport="+ports,
		"remoteip="+remote, "enable=yes")
	if addErr != nil {
		return fmt.Errorf("failed to create block rule for %s: %v, output: %s", remote, addErr, output)
	}
	f.logger.Printf("created %s rule for %s", rule, remote)
	return nil
}

func (f *Netsh) UnblockTrusted(trustedIPs []string, trustedSubnets []string) error {
	if existing, found := f.showRemoteIPs(blockIPsRule); found {
		updated := make([]string, 0, len(existing))
		for _, entry := range existing {
			if !contains(trustedIPs, entry) {
				updated = append(updated, entry)
			}
		}
		if len(updated) < len(existing) {
			_, _ = f.commander.CombinedOutput(netshExecutable,
				"advfirewall", "firewall", "set", "rule", "name="+blockIPsRule,
				"new", "remoteip="+strings.Join(updated, ","))
			f.logger.Printf("removed trusted IPs from %s", blockIPsRule)
		}
	}

	if existing, found := f.showRemoteIPs(blockOtherRule); found {
		updated := make([]string, 0, len(existing))
		for _, entry := range existing {
			if !subnetOfAny(entry, trustedSubnets) {
				updated = append(updated, entry)
			}
		}
		if len(updated) < len(existing) {
			_, _ = f.commander.CombinedOutput(netshExecutable,
				"advfirewall", "firewall", "set", "rule", "name="+blockOtherRule,
				"new", "remoteip="+strings.Join(updated, ","))
			f.logger.Printf("removed trusted subnets from %s", blockOtherRule)
		}
	}
	return nil
}

// Configure pre-blocks every public range except the trusted addresses and
// subnets. The exclusion arithmetic is CPU-bound and runs in a bounded
// worker pool.
func (f *Netsh) Configure(ports string, trustedIPs []string, trustedSubnets []string) error {
	subnets, computeErr := network.SubnetsToAvoid(trustedIPs, trustedSubnets)
	if computeErr != nil {
		return fmt.Errorf("failed to compute subnets to block: %w", computeErr)
	}

	_, _ = f.commander.CombinedOutput(netshExecutable,
		"advfirewall", "firewall", "delete", "rule", "name="+blockOtherRule)

	output, addErr := f.commander.CombinedOutput(netshExecutable,
		"advfirewall", "firewall", "add", "rule", "name="+blockOtherRule,
		"dir=in", "action=block", "protocol=TCP", "localport="+ports,
		"remoteip="+strings.Join(subnets, ","), "enable=yes")
	if addErr != nil {
		return fmt.Errorf("failed to add subnet block rule: %v, output: %s", addErr, output)
	}
	f.logger.Printf("blocked %d subnets on ports %s", len(subnets), ports)
	return nil
}

// showRemoteIPs returns the remote addresses of a named rule; found is false
// when the rule does not exist.
func (f *Netsh) showRemoteIPs(rule string) ([]string, bool) {
	output, showErr := f.commander.CombinedOutput(netshExecutable,
		"advfirewall", "firewall", "show", "rule", "name="+rule)
	if showErr != nil {
		return nil, false
	}
	match := remoteIPPattern.FindStringSubmatch(string(output))
	if match == nil {
		return nil, true
	}
	value := strings.TrimSpace(match[1])
	if value == "" || value == "Any" {
		return nil, true
	}
	return strings.Split(value, ","), true
}

func isGlobal(addr netip.Addr) bool {
	return !(addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsMulticast() || addr.IsUnspecified())
}

func contains(list []string, value string) bool {
	for _, entry := range list {
		if entry == value {
			return true
		}
	}
	return false
}

func subnetOfAny(subnet string, trusted []string) bool {
	prefix, parseErr := netip.ParsePrefix(subnet)
	if parseErr != nil {
		return false
	}
	for _, t := range trusted {
		trustedPrefix, trustedErr := netip.ParsePrefix(t)
		if trustedErr != nil {
			continue
		}
		if trustedPrefix.Bits() <= prefix.Bits() && trustedPrefix.Contains(prefix.Addr()) {
			return true
		}
	}
	return false
}
