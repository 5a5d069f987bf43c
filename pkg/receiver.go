package protocol

import (
	"net/netip"
)

// handleReceiverData accepts the in-order DATA packet, re-acknowledges
// recent duplicates, and ignores everything else.
func (stack *RUDPStack) handleReceiverData(sock *RUDPSocket, sess *session, peer netip.AddrPort, p *Packet) {
	rcv := sess.receiver
	seqno := p.Header.Seqno

	// The first in-order DATA completes the receiver's opening handshake.
	if rcv.status == Opening && seqno == rcv.expectedSeqno {
		rcv.status = Open
	}

	if seqno == rcv.expectedSeqno {
		rcv.expectedSeqno = seqno + 1
		stack.sendAck(sock, rcv.expectedSeqno, peer)

		// Pass the data up to the application
		if sock.recvHandler != nil {
			sock.recvHandler(sock, peer, p.Payload)
		}
		return
	}

	// A duplicate whose ACK was lost: re-ACK but do not redeliver.
	if SeqGEQ(seqno, rcv.expectedSeqno-RudpWindow) && SeqLT(seqno, rcv.expectedSeqno) {
		stack.sendAck(sock, seqno+1, peer)
	}
}

// handleReceiverFin acknowledges an in-order FIN and marks the inbound half
// finished. The expected seqno is deliberately left in place so that a
// retransmitted FIN (lost FIN-ACK) is re-acknowledged rather than ignored.
func (stack *RUDPStack) handleReceiverFin(sock *RUDPSocket, sess *session, peer netip.AddrPort, p *Packet) {
	rcv := sess.receiver
	if rcv.status != Open {
		return
	}
	if p.Header.Seqno != rcv.expectedSeqno {
		return
	}

	stack.sendAck(sock, rcv.expectedSeqno+1, peer)
	rcv.finished = true
	stack.maybeTeardown(sock, peer)
}
