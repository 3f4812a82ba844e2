package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/c2h5oh/datasize"
)

// MsgType identifies the payload carried by a TLV frame.
type MsgType uint32

const (
	// PlanarConfigRequest is sent root->leaf during PROMPTING with an empty
	// payload, requesting the leaf send its host record.
	PlanarConfigRequest MsgType = 1
	// ConfigResponse is sent leaf->root in reply to PlanarConfigRequest,
	// carrying the leaf's wire.EncodeHost record.
	ConfigResponse MsgType = 2
	// CompositeConfig is sent root->leaf during DISTRIBUTING, carrying the
	// merged wire.EncodeAllHosts payload.
	CompositeConfig MsgType = 3
)

func (m MsgType) String() string {
	switch m {
	case PlanarConfigRequest:
		return "PlanarConfigRequest"
	case ConfigResponse:
		return "ConfigResponse"
	case CompositeConfig:
		return "CompositeConfig"
	default:
		return fmt.Sprintf("MsgType(%d)", uint32(m))
	}
}

// MaxFrame bounds the length field of a single TLV frame. A peer declaring
// a larger payload has violated the protocol and is dropped.
const MaxFrame = 8 * datasize.MiB

// headerSize is the on-wire size of the TLV header: u32 type, u32 length.
const headerSize = 8

// ErrProtocol wraps framing violations: an out-of-range length or an
// unknown message type. A connection that closes mid-frame is reported as
// ErrPeerClosed instead.
var ErrProtocol = errors.New("tlv: protocol violation")

// SendTLV writes one frame: an 8-byte header (type, length) followed by
// payload.
func SendTLV(sock *Socket, typ MsgType, payload []byte) error {
	if datasize.ByteSize(len(payload)) > MaxFrame {
		return fmt.Errorf("%w: payload of %d bytes exceeds MaxFrame", ErrProtocol, len(payload))
	}

	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header[0:4], uint32(typ))
	binary.BigEndian.PutUint32(header[4:8], uint32(len(payload)))

	if err := sock.Send(header); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	return sock.Send(payload)
}

// RecvTLV blocks until one full frame has been read. A length exceeding
// MaxFrame is a protocol violation, not merely rejected input: the caller
// should close the connection to this peer.
func RecvTLV(sock *Socket) (MsgType, []byte, error) {
	header, err := sock.Recv(headerSize)
	if err != nil {
		if errors.Is(err, ErrPeerClosed) {
			return 0, nil, err
		}
		return 0, nil, err
	}

	typ := MsgType(binary.BigEndian.Uint32(header[0:4]))
	length := binary.BigEndian.Uint32(header[4:8])

	if datasize.ByteSize(length) > MaxFrame {
		return 0, nil, fmt.Errorf("%w: declared length %d exceeds MaxFrame", ErrProtocol, length)
	}

	switch typ {
	case PlanarConfigRequest, ConfigResponse, CompositeConfig:
	default:
		return 0, nil, fmt.Errorf("%w: unknown message type %d", ErrProtocol, typ)
	}

	if length == 0 {
		return typ, nil, nil
	}

	payload, err := sock.Recv(int(length))
	if err != nil {
		return 0, nil, err
	}

	return typ, payload, nil
}
