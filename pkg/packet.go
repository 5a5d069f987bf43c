package protocol

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// Wire-visible protocol constants. These must not change: they are shared
// with existing peers.
const (
	RudpVersion    = 1                       // protocol version
	RudpMaxPktSize = 1000                    // data bytes per packet, RUDP header not included
	RudpMaxRetrans = 5                       // max number of retransmissions
	RudpTimeout    = 2000 * time.Millisecond // retransmission timeout, the same for every retry
	RudpWindow     = 3                       // max unacknowledged packets in the network

	HeaderLen = 8
)

// Packet types
const (
	TypeData uint16 = 1
	TypeAck  uint16 = 2
	TypeSyn  uint16 = 4
	TypeFin  uint16 = 5
)

type Header struct {
	Version uint16
	Type    uint16
	Seqno   uint32
}

type Packet struct {
	Header  Header
	Payload []byte
}

func NewPacket(ptype uint16, seqno uint32, payload []byte) *Packet {
	p := &Packet{
		Header: Header{
			Version: RudpVersion,
			Type:    ptype,
			Seqno:   seqno,
		},
	}
	if len(payload) > 0 {
		p.Payload = make([]byte, len(payload))
		copy(p.Payload, payload)
	}
	return p
}

// Marshal encodes the packet into a single datagram: an 8-byte header in
// network byte order followed by the payload.
func (p *Packet) Marshal() []byte {
	buf := make([]byte, HeaderLen+len(p.Payload))
	binary.BigEndian.PutUint16(buf[0:2], p.Header.Version)
	binary.BigEndian.PutUint16(buf[2:4], p.Header.Type)
	binary.BigEndian.PutUint32(buf[4:8], p.Header.Seqno)
	copy(buf[HeaderLen:], p.Payload)
	return buf
}

// UnmarshalPacket decodes one received datagram. The payload length is the
// datagram length minus the header; there is no length field on the wire.
func UnmarshalPacket(buf []byte) (*Packet, error) {
	if len(buf) < HeaderLen {
		return nil, errors.Errorf("packet too short: %d bytes", len(buf))
	}
	p := &Packet{
		Header: Header{
			Version: binary.BigEndian.Uint16(buf[0:2]),
			Type:    binary.BigEndian.Uint16(buf[2:4]),
			Seqno:   binary.BigEndian.Uint32(buf[4:8]),
		},
	}
	if p.Header.Version != RudpVersion {
		return nil, errors.Errorf("bad packet version: %d", p.Header.Version)
	}
	if len(buf) > HeaderLen {
		p.Payload = make([]byte, len(buf)-HeaderLen)
		copy(p.Payload, buf[HeaderLen:])
	}
	return p, nil
}

func typeName(ptype uint16) string {
	switch ptype {
	case TypeData:
		return "DATA"
	case TypeAck:
		return "ACK"
	case TypeSyn:
		return "SYN"
	case TypeFin:
		return "FIN"
	default:
		return "BAD"
	}
}
