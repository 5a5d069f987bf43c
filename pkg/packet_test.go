package protocol

import (
	"bytes"
	"testing"
)

func TestPacketMarshalLayout(t *testing.T) {
	p := NewPacket(TypeData, 0x01020304, []byte("hi"))
	buf := p.Marshal()

	want := []byte{
		0x00, 0x01, // version
		0x00, 0x01, // type DATA
		0x01, 0x02, 0x03, 0x04, // seqno
		'h', 'i',
	}
	if !bytes.Equal(buf, want) {
		t.Fatalf("Marshal = % x, want % x", buf, want)
	}
}

func TestPacketMarshalNoPayload(t *testing.T) {
	p := NewPacket(TypeAck, 7, nil)
	buf := p.Marshal()
	if len(buf) != HeaderLen {
		t.Fatalf("ACK datagram is %d bytes, want %d", len(buf), HeaderLen)
	}
}

func TestPacketRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, RudpMaxPktSize)
	p := NewPacket(TypeData, 0xDEADBEEF, payload)

	got, err := UnmarshalPacket(p.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalPacket: %v", err)
	}
	if got.Header != p.Header {
		t.Errorf("header = %+v, want %+v", got.Header, p.Header)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("payload mismatch: %d bytes vs %d", len(got.Payload), len(payload))
	}
}

func TestUnmarshalRejectsShortPacket(t *testing.T) {
	for n := 0; n < HeaderLen; n++ {
		if _, err := UnmarshalPacket(make([]byte, n)); err == nil {
			t.Errorf("UnmarshalPacket accepted %d-byte datagram", n)
		}
	}
}

func TestUnmarshalRejectsBadVersion(t *testing.T) {
	p := NewPacket(TypeSyn, 1, nil)
	buf := p.Marshal()
	buf[1] = 2 // version 2
	if _, err := UnmarshalPacket(buf); err == nil {
		t.Fatal("UnmarshalPacket accepted version 2")
	}
}

func TestUnmarshalPayloadLengthFromDatagram(t *testing.T) {
	// No length field on the wire: the payload is whatever follows the header.
	buf := append(NewPacket(TypeData, 9, nil).Marshal(), []byte("abc")...)
	p, err := UnmarshalPacket(buf)
	if err != nil {
		t.Fatalf("UnmarshalPacket: %v", err)
	}
	if string(p.Payload) != "abc" {
		t.Fatalf("payload = %q, want %q", p.Payload, "abc")
	}
}
