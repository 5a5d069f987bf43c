package protocol

import (
	"fmt"
	"math/rand"
	"net"
	"net/netip"
	"time"

	"github.com/pkg/errors"

	"rudp-vs-pa/event"
)

// RUDP events delivered to the application's event handler.
type EventType int

const (
	EventTimeout EventType = iota // retry ceiling exceeded for a packet to the peer
	EventClosed                   // close completed; all sessions finished
)

// RecvHandler receives one application datagram. The buffer is only valid
// for the duration of the call.
type RecvHandler func(sock *RUDPSocket, from netip.AddrPort, data []byte)

type EventHandler func(sock *RUDPSocket, ev EventType, from netip.AddrPort)

// RUDPStack owns every RUDP socket bound through it, the RNG used for
// initial sequence numbers, and the reactor all callbacks run on. All calls
// into the stack must come from the reactor goroutine (or before Run).
type RUDPStack struct {
	Reactor      *event.Reactor
	Sockets      map[int]*RUDPSocket
	NextSocketID int

	// Drop simulates a lossy network: if > 1, roughly one in Drop outgoing
	// packets is discarded before it reaches the wire. A Drop of 0 or 1
	// discards nothing.
	Drop int

	rng     *rand.Rand
	timeout time.Duration // retransmission interval
}

// An RUDPSocket multiplexes reliable sessions to many peers over one UDP
// descriptor.
type RUDPSocket struct {
	sid            int
	conn           *net.UDPConn
	closeRequested bool
	sessions       map[netip.AddrPort]*session

	recvHandler  RecvHandler
	eventHandler EventHandler
}

func NewRUDPStack(reactor *event.Reactor) *RUDPStack {
	return &RUDPStack{
		Reactor: reactor,
		Sockets: make(map[int]*RUDPSocket),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		timeout: RudpTimeout,
	}
}

// Socket binds a UDP endpoint on port (0 for an ephemeral port) and
// registers it with the reactor.
func (stack *RUDPStack) Socket(port int) (*RUDPSocket, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, errors.Wrap(err, "rudp: bind failed")
	}

	sock := &RUDPSocket{
		sid:      stack.NextSocketID,
		conn:     conn,
		sessions: make(map[netip.AddrPort]*session),
	}
	stack.Sockets[sock.sid] = sock
	stack.NextSocketID++

	stack.Reactor.OnReadable(conn, func(buf []byte, from netip.AddrPort) {
		stack.receive(sock, buf, from)
	})
	return sock, nil
}

// LocalAddr returns the bound UDP address of the socket.
func (sock *RUDPSocket) LocalAddr() netip.AddrPort {
	return sock.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// SetRecvHandler registers the callback for received application data.
func (sock *RUDPSocket) SetRecvHandler(h RecvHandler) error {
	if h == nil {
		return errors.New("rudp: recv handler is nil")
	}
	sock.recvHandler = h
	return nil
}

// SetEventHandler registers the callback for TIMEOUT and CLOSED events.
func (sock *RUDPSocket) SetEventHandler(h EventHandler) error {
	if h == nil {
		return errors.New("rudp: event handler is nil")
	}
	sock.eventHandler = h
	return nil
}

// Sendto queues one application datagram of at most RudpMaxPktSize bytes
// for reliable, in-order delivery to peer. The first send to a new peer
// opens a session by emitting a SYN.
func (stack *RUDPStack) Sendto(sock *RUDPSocket, data []byte, peer netip.AddrPort) error {
	if len(data) > RudpMaxPktSize {
		return errors.Errorf("rudp: payload of %d bytes exceeds max packet size", len(data))
	}
	if _, ok := stack.Sockets[sock.sid]; !ok {
		return errors.New("rudp: send on unknown socket")
	}
	if sock.closeRequested {
		return errors.New("rudp: send on closing socket")
	}
	if !peer.IsValid() || peer.Port() == 0 {
		return errors.Errorf("rudp: invalid peer address %v", peer)
	}
	peer = netip.AddrPortFrom(peer.Addr().Unmap(), peer.Port())
	if !peer.Addr().Is4() {
		return errors.Errorf("rudp: peer %v is not an IPv4 address", peer)
	}

	item := make([]byte, len(data))
	copy(item, data)

	sess, exists := sock.sessions[peer]
	if !exists || sess.sender == nil {
		// First outbound data for this peer: open with a random initial
		// sequence number.
		seqno := stack.rng.Uint32()
		sess = sock.createSenderSession(peer, seqno, item)
		syn := NewPacket(TypeSyn, seqno, nil)
		sess.sender.synTimer = stack.sendPacket(false, sock, syn, peer)
		return nil
	}

	snd := sess.sender
	if snd.status == Open && len(snd.queue) == 0 {
		for i := 0; i < RudpWindow; i++ {
			if snd.window[i] != nil {
				continue
			}
			snd.seqno++
			datap := NewPacket(TypeData, snd.seqno, item)
			snd.window[i] = datap
			snd.retransmits[i] = 0
			snd.dataTimers[i] = stack.sendPacket(false, sock, datap, peer)
			return nil
		}
	}

	// Window full, handshake still in flight, or older data already queued.
	snd.queue = append(snd.queue, item)
	return nil
}

// Close requests an orderly shutdown. Outstanding sends complete first:
// queues drain, FINs go out per session, and only when every session has
// both halves finished does the socket emit CLOSED and release the
// descriptor.
func (stack *RUDPStack) Close(sock *RUDPSocket) error {
	if _, ok := stack.Sockets[sock.sid]; !ok {
		return errors.New("rudp: close on unknown socket")
	}
	sock.closeRequested = true

	// Sessions that are already idle will never see another ACK, so their
	// FINs have to go out here.
	stack.sendPendingFins(sock)
	stack.maybeTeardown(sock, netip.AddrPort{})
	return nil
}

// sendPendingFins emits a FIN for every open sender session whose queue and
// window are empty.
func (stack *RUDPStack) sendPendingFins(sock *RUDPSocket) {
	for peer, sess := range sock.sessions {
		snd := sess.sender
		if snd == nil || snd.finished || snd.status != Open {
			continue
		}
		if len(snd.queue) == 0 && snd.window[0] == nil {
			snd.seqno++
			fin := NewPacket(TypeFin, snd.seqno, nil)
			snd.finTimer = stack.sendPacket(false, sock, fin, peer)
			snd.status = FinSent
		}
	}
}

// maybeTeardown releases the socket if close was requested and every
// session has both halves finished. Sessions are detached from the table
// before anything is released.
func (stack *RUDPStack) maybeTeardown(sock *RUDPSocket, last netip.AddrPort) {
	if !sock.closeRequested {
		return
	}
	for _, sess := range sock.sessions {
		if !sess.finishedSender() || !sess.finishedReceiver() {
			return
		}
	}

	sock.sessions = make(map[netip.AddrPort]*session)
	delete(stack.Sockets, sock.sid)
	stack.Reactor.CancelReadable(sock.conn)
	sock.conn.Close()

	if sock.eventHandler != nil {
		sock.eventHandler(sock, EventClosed, last)
	}
}

// sendPacket transmits p to recipient and, for everything except ACKs,
// schedules the retransmission timer that owns the packet. The returned
// timer is nil for ACKs. Send failures are logged only; the timer retries.
func (stack *RUDPStack) sendPacket(isAck bool, sock *RUDPSocket, p *Packet, recipient netip.AddrPort) *event.Timer {
	fmt.Printf("Sending %s packet to %s seq number=%d on socket=%d\n",
		typeName(p.Header.Type), recipient, p.Header.Seqno, sock.sid)

	if stack.Drop > 0 && stack.rng.Intn(stack.Drop) == 1 {
		fmt.Println("Dropped")
	} else if _, err := sock.conn.WriteToUDPAddrPort(p.Marshal(), recipient); err != nil {
		fmt.Println("rudp: sendto failed:", err)
	}

	if isAck {
		return nil
	}
	return stack.Reactor.Timeout(stack.timeout, func() {
		stack.packetTimeout(sock, p, recipient)
	})
}

func (stack *RUDPStack) sendAck(sock *RUDPSocket, seqno uint32, recipient netip.AddrPort) {
	stack.sendPacket(true, sock, NewPacket(TypeAck, seqno, nil), recipient)
}

func (stack *RUDPStack) emitTimeout(sock *RUDPSocket, peer netip.AddrPort) {
	if sock.eventHandler != nil {
		sock.eventHandler(sock, EventTimeout, peer)
	}
}
