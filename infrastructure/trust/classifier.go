package trust

import (
	"fmt"
	"net/netip"
	"sync"
)

// Classifier decides whether a peer address is trusted. Trust is the union
// of configured exact addresses, configured network blocks, and a runtime
// auto-trust set that grows on first accepted connection when the feature is
// enabled. The configured lists are immutable after construction; only the
// auto-trust set mutates and it is guarded by one mutex.
type Classifier struct {
	sources map[string]struct{}
	subnets []netip.Prefix

	mu   sync.Mutex
	auto map[string]struct{}
}

func NewClassifier(sources []string, subnets []string) (*Classifier, error) {
	c := &Classifier{
		sources: make(map[string]struct{}, len(sources)),
		auto:    make(map[string]struct{}),
	}
	for _, source := range sources {
		if _, parseErr := netip.ParseAddr(source); parseErr != nil {
			return nil, fmt.Errorf("invalid trusted source %q: %w", source, parseErr)
		}
		c.sources[source] = struct{}{}
	}
	for _, subnet := range subnets {
		prefix, parseErr := netip.ParsePrefix(subnet)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid trusted subnet %q: %w", subnet, parseErr)
		}
		c.subnets = append(c.subnets, prefix.Masked())
	}
	return c, nil
}

// Trusted reports whether the address is trusted. Pure: no side effects.
func (c *Classifier) Trusted(ip string) bool {
	if _, ok := c.sources[ip]; ok {
		return true
	}

	c.mu.Lock()
	_, autoTrusted := c.auto[ip]
	c.mu.Unlock()
	if autoTrusted {
		return true
	}

	addr, parseErr := netip.ParseAddr(ip)
	if parseErr != nil {
		return false
	}
	for _, prefix := range c.subnets {
		if prefix.Contains(addr.Unmap()) {
			return true
		}
	}
	return false
}

// AutoTrust adds the address to the runtime trusted set. Returns true when
// the address was newly added; re-adding is a no-op.
func (c *Classifier) AutoTrust(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.auto[ip]; exists {
		return false
	}
	c.auto[ip] = struct{}{}
	return true
}
