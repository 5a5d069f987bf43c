package protocol

import (
	"net/netip"

	"rudp-vs-pa/event"
)

type sessionState int

const (
	SynSent sessionState = iota
	Opening
	Open
	FinSent
)

// senderSession is the outbound half of a peer session: a sliding window of
// in-flight packets plus a queue of payloads that have not entered the
// window yet. The window is left-packed; slot 0 is always the oldest
// unacknowledged packet.
type senderSession struct {
	status sessionState
	seqno  uint32 // last seqno assigned to an outgoing SYN/DATA/FIN

	window      [RudpWindow]*Packet
	retransmits [RudpWindow]int
	dataTimers  [RudpWindow]*event.Timer

	synTimer       *event.Timer
	finTimer       *event.Timer
	synRetransmits int
	finRetransmits int

	queue    [][]byte // unsent payloads, in submission order
	finished bool     // has the FIN we sent been ACKed?
}

// receiverSession is the inbound half: it only tracks the next in-order
// sequence number it will accept.
type receiverSession struct {
	status        sessionState
	expectedSeqno uint32
	finished      bool // have we received a FIN from the sender?
}

// A session holds the protocol state for one peer of one local socket. Both
// halves may coexist (full duplex); most sessions have only one.
type session struct {
	sender   *senderSession
	receiver *receiverSession
}

func newSenderSession(seqno uint32, first []byte) *senderSession {
	s := &senderSession{
		status: SynSent,
		seqno:  seqno,
	}
	s.queue = append(s.queue, first)
	return s
}

func newReceiverSession(expected uint32) *receiverSession {
	return &receiverSession{
		status:        Opening,
		expectedSeqno: expected,
	}
}

// createSenderSession adds a sender half for peer, creating the session if
// this is the first contact in either direction.
func (sock *RUDPSocket) createSenderSession(peer netip.AddrPort, seqno uint32, first []byte) *session {
	sess, exists := sock.sessions[peer]
	if !exists {
		sess = &session{}
		sock.sessions[peer] = sess
	}
	sess.sender = newSenderSession(seqno, first)
	return sess
}

// createReceiverSession adds a receiver half for peer, creating the session
// if this peer has never been seen before.
func (sock *RUDPSocket) createReceiverSession(peer netip.AddrPort, expected uint32) *session {
	sess, exists := sock.sessions[peer]
	if !exists {
		sess = &session{}
		sock.sessions[peer] = sess
	}
	sess.receiver = newReceiverSession(expected)
	return sess
}

// finishedSender reports whether the outbound half of sess is complete. A
// session without a sender half has nothing left to send.
func (sess *session) finishedSender() bool {
	return sess.sender == nil || sess.sender.finished
}

// finishedReceiver reports whether the inbound half of sess is complete.
func (sess *session) finishedReceiver() bool {
	return sess.receiver == nil || sess.receiver.finished
}
