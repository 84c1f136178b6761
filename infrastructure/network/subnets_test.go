package network

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubnetsToAvoidNoExclusions(t *testing.T) {
	subnets, err := SubnetsToAvoid(nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, publicRanges, subnets)
}

func TestSubnetsToAvoidExcludesTrusted(t *testing.T) {
	subnets, err := SubnetsToAvoid([]string{"8.8.8.8"}, []string{"208.0.113.0/24"})
	require.NoError(t, err)

	trustedIP := netip.MustParseAddr("8.8.8.8")
	trustedNet := netip.MustParsePrefix("208.0.113.0/24")
	covered := func(addr netip.Addr) bool {
		for _, s := range subnets {
			if netip.MustParsePrefix(s).Contains(addr) {
				return true
			}
		}
		return false
	}

	assert.False(t, covered(trustedIP), "trusted IP must not fall in any blocked subnet")
	assert.False(t, covered(trustedNet.Addr()), "trusted subnet must be carved out")
	assert.True(t, covered(netip.MustParseAddr("8.8.8.9")), "neighbour of the trusted IP stays blocked")
	assert.True(t, covered(netip.MustParseAddr("208.0.114.1")), "neighbour subnet stays blocked")
}

func TestSubnetsToAvoidIgnoresIPv6(t *testing.T) {
	subnets, err := SubnetsToAvoid([]string{"2001:db8::1"}, []string{"2001:db8::/64"})
	require.NoError(t, err)
	assert.ElementsMatch(t, publicRanges, subnets, "IPv6 entries do not affect the IPv4 set")
}

func TestSubnetsToAvoidInvalidInput(t *testing.T) {
	_, ipErr := SubnetsToAvoid([]string{"not-an-ip"}, nil)
	assert.Error(t, ipErr)

	_, subnetErr := SubnetsToAvoid(nil, []string{"10.0.0.0/99"})
	assert.Error(t, subnetErr)
}

func TestExcludePrefix(t *testing.T) {
	outer := netip.MustParsePrefix("10.0.0.0/8")

	t.Run("disjoint returns outer", func(t *testing.T) {
		got := excludePrefix(outer, netip.MustParsePrefix("192.168.0.0/16"))
		require.Len(t, got, 1)
		assert.Equal(t, outer, got[0])
	})

	t.Run("exclusion covers outer", func(t *testing.T) {
		got := excludePrefix(outer, netip.MustParsePrefix("0.0.0.0/0"))
		assert.Empty(t, got)
	})

	t.Run("carve-out covers the remainder exactly", func(t *testing.T) {
		exclusion := netip.MustParsePrefix("10.1.2.0/24")
		got := excludePrefix(outer, exclusion)
		require.Len(t, got, 24-8)

		total := 0
		for _, prefix := range got {
			assert.False(t, prefix.Overlaps(exclusion), "%s overlaps the exclusion", prefix)
			total += 1 << (32 - prefix.Bits())
		}
		assert.Equal(t, 1<<24-1<<8, total, "remainder address count")
	})
}
