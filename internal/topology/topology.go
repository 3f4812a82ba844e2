// Package topology implements the in-memory host/device/planar-interface
// data model shared by the bootstrap coordinator and the NAT programmer.
package topology

import "net/netip"

// Limits enforced when parsing or decoding topology data. Inputs exceeding
// these are truncated at the producer side, never silently extended.
const (
	MaxDevices             = 8
	MaxInterfacesPerDevice = 64
	MaxStringField         = 63
)

// PlanarInterface is one underlying physical interface carrying traffic for
// a device's virtual IP. A zero netip.Addr (IsValid() == false) means the
// address is unset.
type PlanarInterface struct {
	ID   string
	Name string
	IPv4 netip.Addr
	IPv6 netip.Addr
}

// NewPlanarInterface constructs a PlanarInterface, truncating id/name to
// MaxStringField bytes.
func NewPlanarInterface(id, name string, ipv4, ipv6 netip.Addr) PlanarInterface {
	return PlanarInterface{
		ID:   truncate(id),
		Name: truncate(name),
		IPv4: ipv4,
		IPv6: ipv6,
	}
}

// Device is a logical VIP-bearing unit, backed by an ordered list of planar
// interfaces. Order is preserved across serialization round-trips.
type Device struct {
	VirtualIntf      string
	VirtualIP        netip.Addr
	PlanarInterfaces []PlanarInterface
}

// NewDevice constructs a Device, truncating virtualIntf and capping the
// planar interface list at MaxInterfacesPerDevice.
func NewDevice(virtualIntf string, virtualIP netip.Addr, planarInterfaces []PlanarInterface) Device {
	if len(planarInterfaces) > MaxInterfacesPerDevice {
		planarInterfaces = planarInterfaces[:MaxInterfacesPerDevice]
	}

	return Device{
		VirtualIntf:      truncate(virtualIntf),
		VirtualIP:        virtualIP,
		PlanarInterfaces: planarInterfaces,
	}
}

// Host is one cluster member's topology: its identity plus the devices it
// owns. HostIP doubles as the host's primary identity in the cluster.
type Host struct {
	HostName string
	HostIP   string
	Devices  []Device
}

// NewHost constructs a Host, capping the device list at MaxDevices.
func NewHost(hostName, hostIP string, devices []Device) Host {
	if len(devices) > MaxDevices {
		devices = devices[:MaxDevices]
	}

	return Host{
		HostName: hostName,
		HostIP:   hostIP,
		Devices:  devices,
	}
}

func truncate(s string) string {
	if len(s) > MaxStringField {
		return s[:MaxStringField]
	}
	return s
}
