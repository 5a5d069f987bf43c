package protocol

import (
	"net"
	"net/netip"
	"testing"
	"time"
)

// testPeer is a raw UDP endpoint used to speak the wire protocol at an RUDP
// socket, so tests can assert exact datagram sequences.
type testPeer struct {
	t    *testing.T
	conn *net.UDPConn
	addr netip.AddrPort
}

func newTestPeer(t *testing.T) *testPeer {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("bind test peer: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	port := conn.LocalAddr().(*net.UDPAddr).Port
	return &testPeer{
		t:    t,
		conn: conn,
		addr: netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), uint16(port)),
	}
}

func (p *testPeer) readPacket(timeout time.Duration) (*Packet, error) {
	p.conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 2048)
	n, _, err := p.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return nil, err
	}
	return UnmarshalPacket(buf[:n])
}

func (p *testPeer) mustRead(ptype uint16, timeout time.Duration) *Packet {
	p.t.Helper()
	pkt, err := p.readPacket(timeout)
	if err != nil {
		p.t.Fatalf("reading %s packet: %v", typeName(ptype), err)
	}
	if pkt.Header.Type != ptype {
		p.t.Fatalf("read %s packet, want %s (seq %d)",
			typeName(pkt.Header.Type), typeName(ptype), pkt.Header.Seqno)
	}
	return pkt
}

func (p *testPeer) send(pkt *Packet, to netip.AddrPort) {
	p.t.Helper()
	if _, err := p.conn.WriteToUDPAddrPort(pkt.Marshal(), to); err != nil {
		p.t.Fatalf("test peer send: %v", err)
	}
}

// loopbackAddr returns the 127.0.0.1 address of an RUDP socket bound to the
// wildcard address.
func loopbackAddr(sock *RUDPSocket) netip.AddrPort {
	return netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), sock.LocalAddr().Port())
}

// inject feeds a crafted packet straight into the dispatcher, as if it had
// arrived from peer. Only valid while the reactor loop is not running.
func inject(stack *RUDPStack, sock *RUDPSocket, pkt *Packet, from netip.AddrPort) {
	stack.receive(sock, pkt.Marshal(), from)
}
