package event

import (
	"container/heap"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"
)

// Package event is a single-threaded reactor: registered descriptors and
// one-shot timers deliver callbacks on one loop goroutine, so everything
// driven from the loop can mutate shared state without locking.

const maxDatagram = 65535

type ReadCallback func(buf []byte, from netip.AddrPort)

// A Timer is an owning token for one scheduled callback. Deleting the token
// is idempotent and wins against a timer that has expired but whose callback
// has not yet run.
type Timer struct {
	deadline  time.Time
	callback  func()
	index     int
	cancelled bool
}

type datagram struct {
	conn *net.UDPConn
	buf  []byte
	from netip.AddrPort
	err  error
}

type Reactor struct {
	timers    timerHeap
	readers   map[*net.UDPConn]ReadCallback
	datagrams chan datagram
	posts     chan func()
	quit      chan struct{}
	stopOnce  sync.Once
}

func NewReactor() *Reactor {
	return &Reactor{
		readers:   make(map[*net.UDPConn]ReadCallback),
		datagrams: make(chan datagram, 128),
		posts:     make(chan func(), 16),
		quit:      make(chan struct{}),
	}
}

// OnReadable registers cb to run on the loop goroutine for every datagram
// that arrives on conn.
func (r *Reactor) OnReadable(conn *net.UDPConn, cb ReadCallback) {
	r.readers[conn] = cb
	go r.pump(conn)
}

// CancelReadable deregisters conn. Closing conn is what actually unblocks
// and retires the pump goroutine.
func (r *Reactor) CancelReadable(conn *net.UDPConn) {
	delete(r.readers, conn)
}

func (r *Reactor) pump(conn *net.UDPConn) {
	for {
		buf := make([]byte, maxDatagram)
		n, from, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case r.datagrams <- datagram{conn: conn, err: err}:
			case <-r.quit:
			}
			return
		}
		select {
		case r.datagrams <- datagram{conn: conn, buf: buf[:n], from: from}:
		case <-r.quit:
			return
		}
	}
}

// Timeout schedules cb to run once on the loop goroutine after d.
func (r *Reactor) Timeout(d time.Duration, cb func()) *Timer {
	t := &Timer{
		deadline: time.Now().Add(d),
		callback: cb,
	}
	heap.Push(&r.timers, t)
	return t
}

// TimeoutDelete cancels a scheduled timer. Safe to call twice, and safe to
// call on a timer that has already expired: the callback will not run.
func (r *Reactor) TimeoutDelete(t *Timer) {
	if t == nil {
		return
	}
	t.cancelled = true
}

// Post schedules fn to run on the loop goroutine. This is the one safe way
// to call into loop-owned state from another goroutine.
func (r *Reactor) Post(fn func()) {
	select {
	case r.posts <- fn:
	case <-r.quit:
	}
}

// Run drives the loop until Stop is called or a descriptor fails. Callbacks
// run to completion without preemption.
func (r *Reactor) Run() {
	for {
		var timerC <-chan time.Time
		if next := r.timers.peek(); next != nil {
			d := time.Until(next.deadline)
			if d <= 0 {
				r.runExpired()
				continue
			}
			timerC = time.After(d)
		}

		select {
		case <-r.quit:
			return
		case fn := <-r.posts:
			fn()
		case d := <-r.datagrams:
			if d.err != nil {
				fmt.Println("event: read error:", d.err)
				return
			}
			if cb, ok := r.readers[d.conn]; ok {
				cb(d.buf, d.from)
			}
		case <-timerC:
			r.runExpired()
		}
	}
}

func (r *Reactor) runExpired() {
	now := time.Now()
	for r.timers.Len() > 0 {
		t := r.timers.peek()
		if t.cancelled {
			heap.Pop(&r.timers)
			continue
		}
		if t.deadline.After(now) {
			break
		}
		heap.Pop(&r.timers)
		t.callback()
	}
}

// Stop terminates Run. Safe to call from callbacks and from other goroutines.
func (r *Reactor) Stop() {
	r.stopOnce.Do(func() {
		close(r.quit)
	})
}
