package topology

import (
	"errors"
	"net/netip"
)

// ErrNotFound is returned by LookupVirtual and LookupPlanars when the
// queried address has no entry in the current indexes.
var ErrNotFound = errors.New("topology: not found")

// HostDB is the cluster-wide view maintained on each host. PlanarToVirtual
// and VirtualToPlanar are derived entirely from AllHosts: any mutation of
// AllHosts invalidates them until the next IndexRebuild.
type HostDB struct {
	LocalIP string
	// AllHosts maps hostIP to Host. Keys are unique; iteration order is not
	// part of the contract.
	AllHosts map[string]Host

	PlanarToVirtual map[netip.Addr]netip.Addr
	VirtualToPlanar map[netip.Addr][]PlanarInterface
}

// NewHostDB returns an empty HostDB ready to accept hosts.
func NewHostDB() *HostDB {
	return &HostDB{
		AllHosts: make(map[string]Host),
	}
}

// IndexRebuild populates PlanarToVirtual and VirtualToPlanar by scanning
// every host, device and planar interface in AllHosts. Planar entries whose
// IPv4 is unset are skipped, as are devices whose VirtualIP is unset.
//
// Ordering within VirtualToPlanar[v] follows visitation order (host map
// iteration, then device list, then planar list) and need not be stable
// across calls, only within one call.
func (m *HostDB) IndexRebuild() {
	m.PlanarToVirtual = make(map[netip.Addr]netip.Addr)
	m.VirtualToPlanar = make(map[netip.Addr][]PlanarInterface)

	for _, host := range m.AllHosts {
		for _, device := range host.Devices {
			if !device.VirtualIP.IsValid() || device.VirtualIP.IsUnspecified() {
				continue
			}

			for _, planar := range device.PlanarInterfaces {
				if !planar.IPv4.IsValid() || planar.IPv4.IsUnspecified() {
					continue
				}

				m.PlanarToVirtual[planar.IPv4] = device.VirtualIP
				m.VirtualToPlanar[device.VirtualIP] = append(m.VirtualToPlanar[device.VirtualIP], planar)
			}
		}
	}
}

// LookupVirtual returns the virtual IP that planar traffic for ip should be
// translated to/from, or ErrNotFound.
func LookupVirtual(db *HostDB, planarIPv4 netip.Addr) (netip.Addr, error) {
	v, ok := db.PlanarToVirtual[planarIPv4]
	if !ok {
		return netip.Addr{}, ErrNotFound
	}
	return v, nil
}

// LookupPlanars returns the ordered list of planar interfaces backing the
// given virtual IP, or ErrNotFound.
func LookupPlanars(db *HostDB, virtualIPv4 netip.Addr) ([]PlanarInterface, error) {
	p, ok := db.VirtualToPlanar[virtualIPv4]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}
