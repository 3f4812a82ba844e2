package bootstrap

import "net/netip"

// ElectRoot is a pure function: convert each IPv4 to its 32-bit unsigned
// value, take the minimum, first occurrence wins ties. Every host computes
// this independently over the same peer list and must reach the same
// answer.
func ElectRoot(peers []netip.Addr) netip.Addr {
	if len(peers) == 0 {
		return netip.Addr{}
	}

	root := peers[0]
	rootVal := ipv4Value(root)

	for _, p := range peers[1:] {
		v := ipv4Value(p)
		if v < rootVal {
			root = p
			rootVal = v
		}
	}

	return root
}

func ipv4Value(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
