// Package tlv implements the bootstrap control channel: a blocking Socket
// facade over TCP plus the 8-byte-header TLV framing layered on top of it.
package tlv

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
)

// ErrPeerClosed is returned by Recv when the peer closes the connection
// before n bytes have been read.
var ErrPeerClosed = errors.New("tlv: peer closed connection")

// Socket is a thin, purely blocking facade over a TCP connection or
// listener. Non-blocking mode and polling are out of scope.
type Socket struct {
	addr  netip.AddrPort
	magic uint64

	ln   net.Listener
	conn net.Conn
}

// Init creates a Socket bound to addr. magic is retained for cross-version
// sanity checks between peers of the same protocol generation; it is never
// placed on the wire.
func Init(addr netip.AddrPort, magic uint64) *Socket {
	return &Socket{addr: addr, magic: magic}
}

// Magic returns the handshake magic this socket was initialized with.
func (m *Socket) Magic() uint64 {
	return m.magic
}

// Listen binds and listens on the socket's address.
func (m *Socket) Listen() error {
	ln, err := net.Listen("tcp", m.addr.String())
	if err != nil {
		return fmt.Errorf("tlv: listen on %s: %w", m.addr, err)
	}
	m.ln = ln
	return nil
}

// Accept blocks until a new peer connects, returning a Socket wrapping that
// connection. The caller is responsible for retrying on transient errors;
// Accept itself makes no retry decisions.
func (m *Socket) Accept() (*Socket, error) {
	if m.ln == nil {
		return nil, errors.New("tlv: accept called before listen")
	}

	conn, err := m.ln.Accept()
	if err != nil {
		return nil, err
	}

	return &Socket{magic: m.magic, conn: conn}, nil
}

// Connect dials the socket's address.
func (m *Socket) Connect() error {
	conn, err := net.Dial("tcp", m.addr.String())
	if err != nil {
		return err
	}
	m.conn = conn
	return nil
}

// PeerAddr returns the remote IPv4 address of an established connection,
// the getpeername-equivalent used to log which peer joined during
// AWAITING_LEAVES.
func (m *Socket) PeerAddr() (netip.Addr, bool) {
	if m.conn == nil {
		return netip.Addr{}, false
	}

	addrPort, err := netip.ParseAddrPort(m.conn.RemoteAddr().String())
	if err != nil {
		return netip.Addr{}, false
	}

	return addrPort.Addr(), true
}

// Send writes the full buffer, looping internally as needed.
func (m *Socket) Send(b []byte) error {
	if m.conn == nil {
		return errors.New("tlv: send on unconnected socket")
	}

	_, err := m.conn.Write(b)
	return err
}

// Recv reads exactly n bytes, looping internally. Short reads are not
// acceptable: if the peer closes before n bytes arrive, ErrPeerClosed is
// returned.
func (m *Socket) Recv(n int) ([]byte, error) {
	if m.conn == nil {
		return nil, errors.New("tlv: recv on unconnected socket")
	}

	buf := make([]byte, n)
	_, err := io.ReadFull(m.conn, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrPeerClosed
		}
		return nil, err
	}

	return buf, nil
}

// Close releases the underlying connection and/or listener.
func (m *Socket) Close() error {
	var errs []error

	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if m.ln != nil {
		if err := m.ln.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
