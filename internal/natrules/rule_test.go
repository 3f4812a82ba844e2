package natrules

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amd-rccl/anp-bootstrap/internal/topology"
)

func addr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := netip.ParseAddr(s)
	require.NoError(t, err)
	return a
}

// TestDeriveOrdersLocalBeforeRemoteHosts covers a root-plus-two-leaves
// merged topology, rules derived for localIP=10.0.0.2.
func TestDeriveOrdersLocalBeforeRemoteHosts(t *testing.T) {
	db := topology.NewHostDB()
	db.AllHosts["10.0.0.2"] = topology.NewHost("root", "10.0.0.2", []topology.Device{
		topology.NewDevice("vip0", addr(t, "192.168.1.1"), []topology.PlanarInterface{
			topology.NewPlanarInterface("p1", "eth1", addr(t, "10.1.0.1"), netip.Addr{}),
			topology.NewPlanarInterface("p2", "eth2", addr(t, "10.2.0.1"), netip.Addr{}),
		}),
	})
	db.AllHosts["10.0.0.5"] = topology.NewHost("leaf1", "10.0.0.5", []topology.Device{
		topology.NewDevice("vip0", addr(t, "192.168.1.5"), []topology.PlanarInterface{
			topology.NewPlanarInterface("p1", "eth3", addr(t, "10.3.0.1"), netip.Addr{}),
		}),
	})

	rules := Derive(db, "10.0.0.2")

	require.Len(t, rules, 4+2)

	want := []Rule{
		localTxSNAT(addr(t, "192.168.1.1"), topology.NewPlanarInterface("p1", "eth1", addr(t, "10.1.0.1"), netip.Addr{})),
		localRxDNAT(addr(t, "192.168.1.1"), topology.NewPlanarInterface("p1", "eth1", addr(t, "10.1.0.1"), netip.Addr{})),
		localTxSNAT(addr(t, "192.168.1.1"), topology.NewPlanarInterface("p2", "eth2", addr(t, "10.2.0.1"), netip.Addr{})),
		localRxDNAT(addr(t, "192.168.1.1"), topology.NewPlanarInterface("p2", "eth2", addr(t, "10.2.0.1"), netip.Addr{})),
	}
	require.Equal(t, want, rules[:4])

	remoteWant := []Rule{
		remoteTxDNAT(addr(t, "192.168.1.5"), topology.NewPlanarInterface("p1", "eth3", addr(t, "10.3.0.1"), netip.Addr{})),
		remoteRxSNAT(addr(t, "192.168.1.5"), topology.NewPlanarInterface("p1", "eth3", addr(t, "10.3.0.1"), netip.Addr{})),
	}
	require.Equal(t, remoteWant, rules[4:])
}

// TestDeriveIsPureFunction checks that deriving repeatedly from the same
// db yields the same rule stream every time, including the order of the
// remote scope across several remote hosts, where map iteration order
// would otherwise leak through.
func TestDeriveIsPureFunction(t *testing.T) {
	db := topology.NewHostDB()
	db.AllHosts["10.0.0.2"] = topology.NewHost("root", "10.0.0.2", []topology.Device{
		topology.NewDevice("vip0", addr(t, "192.168.1.1"), []topology.PlanarInterface{
			topology.NewPlanarInterface("p1", "eth1", addr(t, "10.1.0.1"), netip.Addr{}),
		}),
	})
	db.AllHosts["10.0.0.9"] = topology.NewHost("leaf2", "10.0.0.9", []topology.Device{
		topology.NewDevice("vip0", addr(t, "192.168.1.9"), []topology.PlanarInterface{
			topology.NewPlanarInterface("p1", "eth4", addr(t, "10.4.0.1"), netip.Addr{}),
		}),
	})
	db.AllHosts["10.0.0.5"] = topology.NewHost("leaf1", "10.0.0.5", []topology.Device{
		topology.NewDevice("vip0", addr(t, "192.168.1.5"), []topology.PlanarInterface{
			topology.NewPlanarInterface("p1", "eth3", addr(t, "10.3.0.1"), netip.Addr{}),
		}),
	})

	first := Derive(db, "10.0.0.2")
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Derive(db, "10.0.0.2"))
	}
}

func TestDeriveSkipsUnsetAddresses(t *testing.T) {
	db := topology.NewHostDB()
	db.AllHosts["10.0.0.2"] = topology.NewHost("root", "10.0.0.2", []topology.Device{
		topology.NewDevice("vip0", netip.Addr{}, []topology.PlanarInterface{
			topology.NewPlanarInterface("p1", "eth1", addr(t, "10.1.0.1"), netip.Addr{}),
		}),
	})

	require.Empty(t, Derive(db, "10.0.0.2"))
}
