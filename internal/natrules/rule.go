// Package natrules derives and installs the SNAT/DNAT rules that translate
// traffic between a device's virtual IP and its underlying planar
// interfaces, and abstracts rule installation over two equivalent
// iptables/nftables backends.
package natrules

import (
	"net/netip"
	"sort"

	"github.com/amd-rccl/anp-bootstrap/internal/topology"
)

// Action is the NAT verb a Rule applies.
type Action int

const (
	SNAT Action = iota
	DNAT
)

func (a Action) String() string {
	if a == SNAT {
		return "SNAT"
	}
	return "DNAT"
}

// Chain is the netfilter/nftables hook a Rule is installed into.
type Chain int

const (
	Postrouting Chain = iota
	Output
	Input
)

func (c Chain) String() string {
	switch c {
	case Postrouting:
		return "POSTROUTING"
	case Output:
		return "OUTPUT"
	case Input:
		return "INPUT"
	default:
		return "UNKNOWN"
	}
}

// Rule is a declarative, comparable description of one NAT rule. It
// carries no idempotence logic of its own; a Backend owns the
// check-then-act decision.
type Rule struct {
	Chain   Chain
	Action  Action
	// MatchSource and MatchDestination are the IP header match; exactly
	// one of them is set, and TX/RX direction is carried by Chain/Action
	// rather than by a separate field.
	MatchSource      netip.Addr // nonzero if matching by source address
	MatchDestination netip.Addr // nonzero if matching by destination address
	Iface            string
	IfaceDirection   IfaceDirection
	ToSource         netip.Addr // nonzero for SNAT
	ToDestination    netip.Addr // nonzero for DNAT
}

// IfaceDirection distinguishes an out-iface match from an in-iface match.
type IfaceDirection int

const (
	OutIface IfaceDirection = iota
	InIface
)

// Derive produces every NAT rule implied by db for the host identified by
// localIP, in the mandated order: all local-host rules first, then all
// remote-host rules; within a scope, hosts ordered by HostIP, then device,
// then planar-interface order. Derive is a pure function of (db, localIP):
// running it twice on the same input yields an identical rule stream.
func Derive(db *topology.HostDB, localIP string) []Rule {
	hostIPs := make([]string, 0, len(db.AllHosts))
	for ip := range db.AllHosts {
		hostIPs = append(hostIPs, ip)
	}
	sort.Strings(hostIPs)

	var local, remote []Rule

	for _, ip := range hostIPs {
		host := db.AllHosts[ip]
		for _, dev := range host.Devices {
			if !dev.VirtualIP.IsValid() || dev.VirtualIP.IsUnspecified() {
				continue
			}

			for _, p := range dev.PlanarInterfaces {
				if !p.IPv4.IsValid() || p.IPv4.IsUnspecified() {
					continue
				}

				if host.HostIP == localIP {
					local = append(local, localTxSNAT(dev.VirtualIP, p), localRxDNAT(dev.VirtualIP, p))
				} else {
					remote = append(remote, remoteTxDNAT(dev.VirtualIP, p), remoteRxSNAT(dev.VirtualIP, p))
				}
			}
		}
	}

	return append(local, remote...)
}

func localTxSNAT(vip netip.Addr, p topology.PlanarInterface) Rule {
	return Rule{
		Chain:          Postrouting,
		Action:         SNAT,
		MatchSource:    vip,
		Iface:          p.Name,
		IfaceDirection: OutIface,
		ToSource:       p.IPv4,
	}
}

func localRxDNAT(vip netip.Addr, p topology.PlanarInterface) Rule {
	return Rule{
		Chain:            Output,
		Action:           DNAT,
		MatchDestination: vip,
		Iface:            p.Name,
		IfaceDirection:   OutIface,
		ToDestination:    p.IPv4,
	}
}

func remoteTxDNAT(vip netip.Addr, p topology.PlanarInterface) Rule {
	return Rule{
		Chain:            Output,
		Action:           DNAT,
		MatchDestination: vip,
		Iface:            p.Name,
		IfaceDirection:   OutIface,
		ToDestination:    p.IPv4,
	}
}

func remoteRxSNAT(vip netip.Addr, p topology.PlanarInterface) Rule {
	return Rule{
		Chain:          Input,
		Action:         SNAT,
		MatchSource:    p.IPv4,
		Iface:          p.Name,
		IfaceDirection: InIface,
		ToSource:       vip,
	}
}
