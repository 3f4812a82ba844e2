package bootstrap

import (
	"bufio"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/vishvananda/netlink"
)

// MaxPeers caps the number of entries read from a peer-list file.
const MaxPeers = 64

// ParsePeerList reads path as one dotted IPv4 per line. Blank lines are
// dropped; CR/LF is trimmed; duplicates are preserved (election breaks
// ties by first occurrence, so order must survive).
func ParsePeerList(path string) ([]netip.Addr, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newErr(Config, fmt.Errorf("open peer list: %w", err))
	}
	defer f.Close()

	var peers []netip.Addr
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		addr, err := netip.ParseAddr(line)
		if err != nil || !addr.Is4() {
			return nil, newErr(Config, fmt.Errorf("peer list line %q is not a dotted IPv4: %w", line, err))
		}

		peers = append(peers, addr)
		if len(peers) >= MaxPeers {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, newErr(Config, fmt.Errorf("read peer list: %w", err))
	}
	if len(peers) == 0 {
		return nil, newErr(Config, fmt.Errorf("peer list %s is empty", path))
	}

	return peers, nil
}

// LocalAddrs enumerates this host's configured IPv4 addresses across all
// links, via netlink rather than net.InterfaceAddrs, matching the
// netlink-based link/address introspection the rest of this codebase's
// sibling discovery code uses.
func LocalAddrs() ([]netip.Addr, error) {
	addrs, err := netlink.AddrList(nil, netlink.FAMILY_V4)
	if err != nil {
		return nil, newErr(Fatal, fmt.Errorf("enumerate local addresses: %w", err))
	}

	out := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		if a.IP == nil {
			continue
		}
		ip4 := a.IP.To4()
		if ip4 == nil {
			continue
		}
		addr, ok := netip.AddrFromSlice(ip4)
		if !ok {
			continue
		}
		out = append(out, addr)
	}

	return out, nil
}

// ErrNoLocalIP is returned when none of the peer list's entries match any
// of this host's local addresses.
var ErrNoLocalIP = fmt.Errorf("bootstrap: no peer-list entry matches a local address")

// FindLocalIP returns the first peer-list entry that exactly equals one of
// this host's local addresses.
func FindLocalIP(peers []netip.Addr, local []netip.Addr) (netip.Addr, error) {
	localSet := make(map[netip.Addr]struct{}, len(local))
	for _, a := range local {
		localSet[a] = struct{}{}
	}

	for _, p := range peers {
		if _, ok := localSet[p]; ok {
			return p, nil
		}
	}

	return netip.Addr{}, newErr(Config, ErrNoLocalIP)
}
