package topology

import (
	"errors"
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

func TestIndexRebuildCorrectness(t *testing.T) {
	db := NewHostDB()

	vip := mustAddr(t, "192.168.1.1")
	eth1 := mustAddr(t, "10.1.0.1")
	eth2 := mustAddr(t, "10.2.0.1")

	host := NewHost("h1", "10.0.0.2", []Device{
		NewDevice("vip0", vip, []PlanarInterface{
			NewPlanarInterface("p1", "eth1", eth1, netip.Addr{}),
			NewPlanarInterface("p2", "eth2", eth2, netip.Addr{}),
		}),
	})
	db.AllHosts[host.HostIP] = host
	db.LocalIP = host.HostIP

	db.IndexRebuild()

	got, err := LookupVirtual(db, eth1)
	require.NoError(t, err)
	require.Equal(t, vip, got)

	got, err = LookupVirtual(db, eth2)
	require.NoError(t, err)
	require.Equal(t, vip, got)

	planars, err := LookupPlanars(db, vip)
	require.NoError(t, err)
	require.Len(t, planars, 2)

	names := []string{planars[0].Name, planars[1].Name}
	require.ElementsMatch(t, []string{"eth1", "eth2"}, names)
}

func TestIndexRebuildSkipsUnsetAddresses(t *testing.T) {
	db := NewHostDB()

	host := NewHost("h1", "10.0.0.2", []Device{
		NewDevice("vip0", netip.Addr{}, []PlanarInterface{
			NewPlanarInterface("p1", "eth1", mustAddr(t, "10.1.0.1"), netip.Addr{}),
		}),
		NewDevice("vip1", mustAddr(t, "192.168.1.2"), []PlanarInterface{
			NewPlanarInterface("p2", "eth2", netip.Addr{}, netip.Addr{}),
		}),
	})
	db.AllHosts[host.HostIP] = host

	db.IndexRebuild()

	require.Empty(t, db.PlanarToVirtual)
	require.Empty(t, db.VirtualToPlanar)
}

func TestLookupNotFound(t *testing.T) {
	db := NewHostDB()
	db.IndexRebuild()

	_, err := LookupVirtual(db, mustAddr(t, "10.1.0.1"))
	require.True(t, errors.Is(err, ErrNotFound))

	_, err = LookupPlanars(db, mustAddr(t, "192.168.1.1"))
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestDeviceAndHostCaps(t *testing.T) {
	var ifaces []PlanarInterface
	for i := 0; i < MaxInterfacesPerDevice+5; i++ {
		ifaces = append(ifaces, NewPlanarInterface("id", "name", netip.Addr{}, netip.Addr{}))
	}
	dev := NewDevice("v", netip.Addr{}, ifaces)
	require.Len(t, dev.PlanarInterfaces, MaxInterfacesPerDevice)

	var devices []Device
	for i := 0; i < MaxDevices+3; i++ {
		devices = append(devices, dev)
	}
	host := NewHost("h", "1.2.3.4", devices)
	require.Len(t, host.Devices, MaxDevices)
}
