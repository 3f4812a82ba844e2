package wire

import (
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/amd-rccl/anp-bootstrap/internal/topology"
)

func addr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := netip.ParseAddr(s)
	require.NoError(t, err)
	return a
}

func TestHostRoundTrip(t *testing.T) {
	host := topology.NewHost("leaf-2", "10.0.0.2", []topology.Device{
		topology.NewDevice("vip0", addr(t, "192.168.1.1"), []topology.PlanarInterface{
			topology.NewPlanarInterface("p1", "eth1", addr(t, "10.1.0.1"), netip.Addr{}),
			topology.NewPlanarInterface("p2", "eth2", addr(t, "10.2.0.1"), addr(t, "fe80::1")),
		}),
	})

	encoded := EncodeHost(host)
	decoded, offset, err := DecodeHost(encoded, 0)
	require.NoError(t, err)
	require.Equal(t, len(encoded), offset)

	if diff := cmp.Diff(host, decoded, cmpopts.EquateComparable(netip.Addr{})); diff != "" {
		t.Fatalf("round-trip mismatch:\n%s", diff)
	}
}

func TestHostRoundTripWithLongHostNameSucceeds(t *testing.T) {
	longName := ""
	for len(longName) <= 63 {
		longName += "leaf.gpu-cluster.internal"
	}

	host := topology.NewHost(longName, "10.0.0.2", []topology.Device{
		topology.NewDevice("vip0", addr(t, "192.168.1.1"), []topology.PlanarInterface{
			topology.NewPlanarInterface("p1", "eth1", addr(t, "10.1.0.1"), netip.Addr{}),
		}),
	})
	require.Greater(t, len(host.HostName), 63)

	encoded := EncodeHost(host)
	decoded, offset, err := DecodeHost(encoded, 0)
	require.NoError(t, err)
	require.Equal(t, len(encoded), offset)
	require.Equal(t, host.HostName, decoded.HostName)
}

func TestDecodeHostRejectsOversizedShortStringField(t *testing.T) {
	buf := appendString(nil, "root")
	buf = appendString(buf, "10.0.0.2")
	buf = appendU32(buf, 1) // numDevs

	oversized := make([]byte, topology.MaxStringField+1)
	buf = appendString(buf, string(oversized)) // virtualIntf, too long

	_, _, err := DecodeHost(buf, 0)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestAllHostsRoundTrip(t *testing.T) {
	db := topology.NewHostDB()
	db.AllHosts["10.0.0.2"] = topology.NewHost("root", "10.0.0.2", []topology.Device{
		topology.NewDevice("vip0", addr(t, "192.168.1.1"), []topology.PlanarInterface{
			topology.NewPlanarInterface("p1", "eth1", addr(t, "10.1.0.1"), netip.Addr{}),
		}),
	})
	db.AllHosts["10.0.0.5"] = topology.NewHost("leaf-1", "10.0.0.5", nil)

	encoded := EncodeAllHosts(db)
	decoded, err := DecodeAllHosts(encoded)
	require.NoError(t, err)

	if diff := cmp.Diff(db.AllHosts, decoded.AllHosts, cmpopts.EquateComparable(netip.Addr{})); diff != "" {
		t.Fatalf("round-trip mismatch:\n%s", diff)
	}
}

// TestEncodeDecodeHostWithEmptyNames checks that a host with empty name
// fields still round-trips byte-for-byte.
func TestEncodeDecodeHostWithEmptyNames(t *testing.T) {
	host := topology.NewHost("", "10.0.0.2", []topology.Device{
		topology.NewDevice("", addr(t, "192.168.1.1"), []topology.PlanarInterface{
			topology.NewPlanarInterface("", "eth1", addr(t, "10.1.0.1"), netip.Addr{}),
			topology.NewPlanarInterface("", "eth2", addr(t, "10.2.0.1"), netip.Addr{}),
		}),
	})

	encoded := EncodeHost(host)
	decoded, offset, err := DecodeHost(encoded, 0)
	require.NoError(t, err)
	require.Equal(t, len(encoded), offset)
	require.Equal(t, host, decoded)

	reencoded := EncodeHost(decoded)
	require.Equal(t, encoded, reencoded)
}

func TestDecodeHostRejectsOverrun(t *testing.T) {
	buf := []byte{0, 0, 0, 10} // claims a 10-byte hostName, but buffer ends here
	_, _, err := DecodeHost(buf, 0)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeAllHostsRejectsImplausibleCount(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	_, err := DecodeAllHosts(buf)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeAllHostsRejectsTrailingBytes(t *testing.T) {
	db := topology.NewHostDB()
	db.AllHosts["1.2.3.4"] = topology.NewHost("h", "1.2.3.4", nil)
	buf := append(EncodeAllHosts(db), 0xAA)

	_, err := DecodeAllHosts(buf)
	require.ErrorIs(t, err, ErrMalformed)
}
