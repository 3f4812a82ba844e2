package bootstrap

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := netip.ParseAddr(s)
	require.NoError(t, err)
	return a
}

// TestElectRootPicksLowestIPv4Value checks that the peer with the
// numerically smallest IPv4 address is elected root.
func TestElectRootPicksLowestIPv4Value(t *testing.T) {
	peers := []netip.Addr{
		mustAddr(t, "10.0.0.5"),
		mustAddr(t, "10.0.0.2"),
		mustAddr(t, "10.0.0.9"),
	}

	root := ElectRoot(peers)
	require.Equal(t, mustAddr(t, "10.0.0.2"), root)
}

// TestElectRootIsOrderIndependentExceptForTies checks that any
// permutation of the same peer list elects the same root.
func TestElectRootIsOrderIndependentExceptForTies(t *testing.T) {
	a := []netip.Addr{mustAddr(t, "10.0.0.9"), mustAddr(t, "10.0.0.2"), mustAddr(t, "10.0.0.5")}
	b := []netip.Addr{mustAddr(t, "10.0.0.2"), mustAddr(t, "10.0.0.5"), mustAddr(t, "10.0.0.9")}

	require.Equal(t, ElectRoot(a), ElectRoot(b))
}

func TestElectRootFirstOccurrenceWinsTies(t *testing.T) {
	peers := []netip.Addr{
		mustAddr(t, "10.0.0.2"),
		mustAddr(t, "10.0.0.9"),
		mustAddr(t, "10.0.0.2"),
	}

	require.Equal(t, mustAddr(t, "10.0.0.2"), ElectRoot(peers))
}
