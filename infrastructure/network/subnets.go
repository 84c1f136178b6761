package network

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// publicRanges are the IPv4 ranges outside RFC1918/loopback/link-local space.
var publicRanges = []string{
	"1.0.0.0/8", "2.0.0.0/7", "4.0.0.0/6", "8.0.0.0/7", "11.0.0.0/8",
	"12.0.0.0/6", "16.0.0.0/4", "32.0.0.0/3", "64.0.0.0/2", "128.0.0.0/2",
	"192.0.0.0/9", "208.0.0.0/4", "224.0.0.0/3",
}

// SubnetsToAvoid computes the public IPv4 space minus the trusted addresses
// and subnets, as CIDR strings. The per-range exclusion arithmetic is
// CPU-bound, so ranges are processed by a worker pool bounded at NumCPU.
func SubnetsToAvoid(trustedIPs []string, trustedSubnets []string) ([]string, error) {
	exclusions := make([]netip.Prefix, 0, len(trustedIPs)+len(trustedSubnets))
	for _, ip := range trustedIPs {
		addr, parseErr := netip.ParseAddr(ip)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid trusted IP %q: %w", ip, parseErr)
		}
		if !addr.Is4() {
			continue
		}
		exclusions = append(exclusions, netip.PrefixFrom(addr, 32))
	}
	for _, subnet := range trustedSubnets {
		prefix, parseErr := netip.ParsePrefix(subnet)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid trusted subnet %q: %w", subnet, parseErr)
		}
		if !prefix.Addr().Is4() {
			continue
		}
		exclusions = append(exclusions, prefix.Masked())
	}

	results := make([][]netip.Prefix, len(publicRanges))

	var eg errgroup.Group
	eg.SetLimit(runtime.NumCPU())
	for i, rangeStr := range publicRanges {
		eg.Go(func() error {
			rangePrefix, parseErr := netip.ParsePrefix(rangeStr)
			if parseErr != nil {
				return parseErr
			}
			remaining := []netip.Prefix{rangePrefix}
			for _, exclusion := range exclusions {
				next := make([]netip.Prefix, 0, len(remaining))
				for _, current := range remaining {
					next = append(next, excludePrefix(current, exclusion)...)
				}
				remaining = next
			}
			results[i] = remaining
			return nil
		})
	}
	if waitErr := eg.Wait(); waitErr != nil {
		return nil, waitErr
	}

	var out []string
	for _, prefixes := range results {
		for _, prefix := range prefixes {
			out = append(out, prefix.String())
		}
	}
	return out, nil
}

// excludePrefix removes exclusion from outer, returning the covering set of
// prefixes. Non-overlapping inputs return outer unchanged.
func excludePrefix(outer, exclusion netip.Prefix) []netip.Prefix {
	if exclusion.Bits() <= outer.Bits() {
		if exclusion.Contains(outer.Addr()) {
			return nil
		}
		return []netip.Prefix{outer}
	}
	if !outer.Contains(exclusion.Addr()) {
		return []netip.Prefix{outer}
	}

	// Split outer one bit at a time, keeping the half not containing the
	// exclusion and descending into the other.
	var kept []netip.Prefix
	current := outer
	for current.Bits() < exclusion.Bits() {
		left, right := splitPrefix(current)
		if left.Contains(exclusion.Addr()) {
			kept = append(kept, right)
			current = left
		} else {
			kept = append(kept, left)
			current = right
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		return kept[i].Addr().Less(kept[j].Addr())
	})
	return kept
}

// splitPrefix halves an IPv4 prefix into its two child prefixes.
func splitPrefix(prefix netip.Prefix) (netip.Prefix, netip.Prefix) {
	bits := prefix.Bits() + 1
	base := prefix.Addr().As4()
	value := binary.BigEndian.Uint32(base[:])

	var upper [4]byte
	binary.BigEndian.PutUint32(upper[:], value|1<<(32-bits))

	return netip.PrefixFrom(prefix.Addr(), bits),
		netip.PrefixFrom(netip.AddrFrom4(upper), bits)
}
