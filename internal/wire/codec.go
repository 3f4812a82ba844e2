// Package wire implements the length-prefixed binary codec used to carry
// topology.Host and topology.HostDB records over the TLV control channel.
// All integers are 32-bit unsigned, network byte order; strings are
// u32-length || bytes with no terminator; IPv4/IPv6 addresses are raw 4 and
// 16 bytes respectively.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/amd-rccl/anp-bootstrap/internal/topology"
)

// ErrMalformed is returned when decoding encounters a length prefix that
// overruns the buffer, a short-string field exceeding topology.MaxStringField,
// or an implausible host count.
var ErrMalformed = errors.New("wire: malformed payload")

// MaxHostsPerMessage caps the numHosts field accepted by DecodeAllHosts,
// guarding against a corrupt or hostile length turning into a huge
// allocation.
const MaxHostsPerMessage = 4096

// EncodeHost serializes a single host record.
func EncodeHost(h topology.Host) []byte {
	buf := make([]byte, 0, 128)
	buf = appendString(buf, h.HostName)
	buf = appendString(buf, h.HostIP)
	buf = appendU32(buf, uint32(len(h.Devices)))

	for _, dev := range h.Devices {
		buf = appendString(buf, dev.VirtualIntf)
		buf = appendAddr4(buf, dev.VirtualIP)
		buf = appendU32(buf, uint32(len(dev.PlanarInterfaces)))

		for _, p := range dev.PlanarInterfaces {
			buf = appendString(buf, p.ID)
			buf = appendString(buf, p.Name)
			buf = appendAddr4(buf, p.IPv4)
			buf = appendAddr16(buf, p.IPv6)
		}
	}

	return buf
}

// EncodeAllHosts serializes the full cluster view: u32 numHosts followed by
// that many single-host records, in map iteration order (arbitrary).
func EncodeAllHosts(db *topology.HostDB) []byte {
	buf := appendU32(nil, uint32(len(db.AllHosts)))
	for _, h := range db.AllHosts {
		buf = append(buf, EncodeHost(h)...)
	}
	return buf
}

// DecodeHost deserializes a single host record starting at offset, and
// returns the offset just past it.
func DecodeHost(buf []byte, offset int) (topology.Host, int, error) {
	hostName, offset, err := readString(buf, offset)
	if err != nil {
		return topology.Host{}, offset, err
	}

	hostIP, offset, err := readString(buf, offset)
	if err != nil {
		return topology.Host{}, offset, err
	}

	numDevs, offset, err := readU32(buf, offset)
	if err != nil {
		return topology.Host{}, offset, err
	}
	if numDevs > topology.MaxDevices {
		numDevs = topology.MaxDevices
	}

	// A zero device count decodes to a nil slice, the form an empty
	// device list has when built with NewHost(..., nil).
	var devices []topology.Device
	if numDevs > 0 {
		devices = make([]topology.Device, 0, numDevs)
	}
	for i := uint32(0); i < numDevs; i++ {
		virtualIntf, o, err := readShortString(buf, offset)
		if err != nil {
			return topology.Host{}, o, err
		}
		offset = o

		virtualIP, o, err := readAddr4(buf, offset)
		if err != nil {
			return topology.Host{}, o, err
		}
		offset = o

		numIfs, o, err := readU32(buf, offset)
		if err != nil {
			return topology.Host{}, o, err
		}
		offset = o
		if numIfs > topology.MaxInterfacesPerDevice {
			numIfs = topology.MaxInterfacesPerDevice
		}

		ifaces := make([]topology.PlanarInterface, 0, numIfs)
		for j := uint32(0); j < numIfs; j++ {
			id, o, err := readShortString(buf, offset)
			if err != nil {
				return topology.Host{}, o, err
			}
			offset = o

			name, o, err := readShortString(buf, offset)
			if err != nil {
				return topology.Host{}, o, err
			}
			offset = o

			ipv4, o, err := readAddr4(buf, offset)
			if err != nil {
				return topology.Host{}, o, err
			}
			offset = o

			ipv6, o, err := readAddr16(buf, offset)
			if err != nil {
				return topology.Host{}, o, err
			}
			offset = o

			ifaces = append(ifaces, topology.NewPlanarInterface(id, name, ipv4, ipv6))
		}

		devices = append(devices, topology.NewDevice(virtualIntf, virtualIP, ifaces))
	}

	return topology.NewHost(hostName, hostIP, devices), offset, nil
}

// DecodeAllHosts deserializes the full all-hosts message. Trailing bytes
// after the declared record count are rejected.
func DecodeAllHosts(buf []byte) (*topology.HostDB, error) {
	numHosts, offset, err := readU32(buf, 0)
	if err != nil {
		return nil, err
	}
	if numHosts > MaxHostsPerMessage {
		return nil, fmt.Errorf("%w: numHosts %d exceeds cap %d", ErrMalformed, numHosts, MaxHostsPerMessage)
	}

	db := topology.NewHostDB()
	for i := uint32(0); i < numHosts; i++ {
		host, o, err := DecodeHost(buf, offset)
		if err != nil {
			return nil, err
		}
		offset = o
		db.AllHosts[host.HostIP] = host
	}

	if offset != len(buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(buf)-offset)
	}

	return db, nil
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendAddr4(buf []byte, a netip.Addr) []byte {
	if !a.IsValid() {
		return append(buf, 0, 0, 0, 0)
	}
	b := a.As4()
	return append(buf, b[:]...)
}

func appendAddr16(buf []byte, a netip.Addr) []byte {
	if !a.IsValid() {
		var zero [16]byte
		return append(buf, zero[:]...)
	}
	b := a.As16()
	return append(buf, b[:]...)
}

func readU32(buf []byte, offset int) (uint32, int, error) {
	if offset < 0 || offset+4 > len(buf) {
		return 0, offset, fmt.Errorf("%w: u32 at offset %d overruns %d-byte buffer", ErrMalformed, offset, len(buf))
	}
	return binary.BigEndian.Uint32(buf[offset : offset+4]), offset + 4, nil
}

// readShortString reads a length-prefixed string and enforces
// topology.MaxStringField. Use it for the short-string fields
// (virtualIntf, planar id/name); hostName and hostIP are plain strings
// with no such cap and must use readString instead.
func readShortString(buf []byte, offset int) (string, int, error) {
	s, offset, err := readString(buf, offset)
	if err != nil {
		return "", offset, err
	}
	if len(s) > topology.MaxStringField {
		return "", offset, fmt.Errorf("%w: string length %d exceeds MaxStringField", ErrMalformed, len(s))
	}
	return s, offset, nil
}

func readString(buf []byte, offset int) (string, int, error) {
	length, offset, err := readU32(buf, offset)
	if err != nil {
		return "", offset, err
	}
	if offset+int(length) > len(buf) {
		return "", offset, fmt.Errorf("%w: string of length %d at offset %d overruns buffer", ErrMalformed, length, offset)
	}
	s := string(buf[offset : offset+int(length)])
	return s, offset + int(length), nil
}

func readAddr4(buf []byte, offset int) (netip.Addr, int, error) {
	if offset+4 > len(buf) {
		return netip.Addr{}, offset, fmt.Errorf("%w: ipv4 at offset %d overruns buffer", ErrMalformed, offset)
	}
	var b [4]byte
	copy(b[:], buf[offset:offset+4])
	offset += 4
	if b == [4]byte{} {
		return netip.Addr{}, offset, nil
	}
	return netip.AddrFrom4(b), offset, nil
}

func readAddr16(buf []byte, offset int) (netip.Addr, int, error) {
	if offset+16 > len(buf) {
		return netip.Addr{}, offset, fmt.Errorf("%w: ipv6 at offset %d overruns buffer", ErrMalformed, offset)
	}
	var b [16]byte
	copy(b[:], buf[offset:offset+16])
	offset += 16
	if b == [16]byte{} {
		return netip.Addr{}, offset, nil
	}
	return netip.AddrFrom16(b), offset, nil
}
