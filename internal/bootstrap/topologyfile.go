package bootstrap

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"

	"github.com/amd-rccl/anp-bootstrap/internal/topology"
)

// DefaultTopologyPath is the canonical location of the per-host topology
// descriptor.
const DefaultTopologyPath = "/etc/ainic_planar_config.json"

type planarInterfaceFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IPv4Addr string `json:"ipv4_addr"`
	IPv6Addr string `json:"ipv6_addr"`
}

type deviceFile struct {
	VirtualIntf string                `json:"virtual_intf"`
	VirtualIP   string                `json:"virtual_ip"`
	PlanarIntfs []planarInterfaceFile `json:"planar_intfs"`
}

type hostFile struct {
	HostName string       `json:"host_name"`
	HostIP   string       `json:"host_ip"`
	Devices  []deviceFile `json:"devices"`
}

// LoadTopology reads and parses the local topology descriptor at path into
// a topology.Host. Devices past index 7 and planar interfaces past index
// 63 are dropped by the topology.New* constructors, not here.
func LoadTopology(path string) (topology.Host, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return topology.Host{}, newErr(Config, fmt.Errorf("read topology file: %w", err))
	}

	var hf hostFile
	if err := json.Unmarshal(raw, &hf); err != nil {
		return topology.Host{}, newErr(Config, fmt.Errorf("parse topology JSON: %w", err))
	}

	devices := make([]topology.Device, 0, len(hf.Devices))
	for _, df := range hf.Devices {
		vip := parseOptionalAddr(df.VirtualIP)

		ifaces := make([]topology.PlanarInterface, 0, len(df.PlanarIntfs))
		for _, pf := range df.PlanarIntfs {
			ifaces = append(ifaces, topology.NewPlanarInterface(
				pf.ID, pf.Name, parseOptionalAddr(pf.IPv4Addr), parseOptionalAddr(pf.IPv6Addr),
			))
		}

		devices = append(devices, topology.NewDevice(df.VirtualIntf, vip, ifaces))
	}

	return topology.NewHost(hf.HostName, hf.HostIP, devices), nil
}

// parseOptionalAddr parses s, returning the zero netip.Addr (the topology
// model's "unset" sentinel) for an empty or unparseable field rather than
// failing the whole file over one bad address.
func parseOptionalAddr(s string) netip.Addr {
	if s == "" {
		return netip.Addr{}
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}
	}
	return addr
}
