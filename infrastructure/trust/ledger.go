package trust

import (
	"net/netip"
	"sync"
	"time"
)

// Ledger tracks untrusted connection attempts per address and per subnet
// (/24 for IPv4, /64 for IPv6). Entries are append-only timestamps; entries
// older than the retention period are pruned lazily on each update. One
// mutex guards both maps.
type Ledger struct {
	mu       sync.Mutex
	byAddr   map[string][]time.Time
	bySubnet map[string][]time.Time
	period   time.Duration
	now      func() time.Time
}

func NewLedger(period time.Duration) *Ledger {
	return &Ledger{
		byAddr:   make(map[string][]time.Time),
		bySubnet: make(map[string][]time.Time),
		period:   period,
		now:      time.Now,
	}
}

// RecordAddr prunes expired address entries and appends one attempt for ip,
// returning the resulting count. Prune and append are atomic under the lock.
func (l *Ledger) RecordAddr(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for addr, attempts := range l.byAddr {
		if len(attempts) > 0 && now.Sub(attempts[len(attempts)-1]) > l.period {
			delete(l.byAddr, addr)
		}
	}

	l.byAddr[ip] = append(l.byAddr[ip], now)
	return len(l.byAddr[ip])
}

// RecordSubnet appends one attempt for the subnet containing ip, returning
// the subnet key and resulting count.
func (l *Ledger) RecordSubnet(ip string) (string, int) {
	subnet := SubnetKey(ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, attempts := range l.bySubnet {
		if len(attempts) > 0 && now.Sub(attempts[len(attempts)-1]) > l.period {
			delete(l.bySubnet, key)
		}
	}

	l.bySubnet[subnet] = append(l.bySubnet[subnet], now)
	return subnet, len(l.bySubnet[subnet])
}

// ClearAddr drops the ledger entry for one address (after a block action).
func (l *Ledger) ClearAddr(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byAddr, ip)
}

// ClearSubnet drops the ledger entry for one subnet key.
func (l *Ledger) ClearSubnet(subnet string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.bySubnet, subnet)
}

// AddrCount reports the current attempt count for one address.
func (l *Ledger) AddrCount(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byAddr[ip])
}

// SubnetKey aggregates an address into its counting block: /24 for IPv4,
// /64 for IPv6. Unparseable input is used verbatim.
func SubnetKey(ip string) string {
	addr, parseErr := netip.ParseAddr(ip)
	if parseErr != nil {
		return ip
	}
	addr = addr.Unmap()
	bits := 24
	if addr.Is6() {
		bits = 64
	}
	prefix, prefixErr := addr.Prefix(bits)
	if prefixErr != nil {
		return ip
	}
	return prefix.String()
}
