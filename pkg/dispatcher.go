package protocol

import (
	"fmt"
	"net/netip"
)

// receive is the socket's readable callback: decode one datagram, locate or
// lazily create the peer session, and route on packet type. Anything that
// does not fit the protocol is dropped silently.
func (stack *RUDPStack) receive(sock *RUDPSocket, buf []byte, from netip.AddrPort) {
	p, err := UnmarshalPacket(buf)
	if err != nil {
		fmt.Println("rudp: dropping packet:", err)
		return
	}

	from = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())
	fmt.Printf("Received %s packet from %s seq number=%d on socket=%d\n",
		typeName(p.Header.Type), from, p.Header.Seqno, sock.sid)

	sess, exists := sock.sessions[from]

	switch p.Header.Type {
	case TypeSyn:
		if !exists || sess.receiver == nil || sess.receiver.status == Opening {
			// New (or restarted) opening handshake: align on the peer's
			// sequence number and acknowledge it.
			seqno := p.Header.Seqno + 1
			sock.createReceiverSession(from, seqno)
			stack.sendAck(sock, seqno, from)
		}
		// A SYN on an already-open receiver is ignored: it protects the
		// session against spurious restarts.

	case TypeAck:
		if !exists || sess.sender == nil {
			return
		}
		stack.handleSenderAck(sock, sess, from, p)

	case TypeData:
		if !exists || sess.receiver == nil {
			return
		}
		stack.handleReceiverData(sock, sess, from, p)

	case TypeFin:
		if !exists || sess.receiver == nil {
			return
		}
		stack.handleReceiverFin(sock, sess, from, p)

	default:
		// Unknown type - ignore it
	}
}
