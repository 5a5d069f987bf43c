package event

import (
	"net"
	"net/netip"
	"testing"
	"time"
)

func TestTimersFireInDeadlineOrder(t *testing.T) {
	r := NewReactor()
	fired := make(chan string, 4)

	r.Timeout(60*time.Millisecond, func() { fired <- "late" })
	r.Timeout(20*time.Millisecond, func() { fired <- "early" })
	r.Timeout(40*time.Millisecond, func() { fired <- "middle" })

	go r.Run()
	defer r.Stop()

	want := []string{"early", "middle", "late"}
	for _, w := range want {
		select {
		case got := <-fired:
			if got != w {
				t.Fatalf("timer %q fired, want %q", got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timer %q never fired", w)
		}
	}
}

func TestTimeoutDeleteIsIdempotent(t *testing.T) {
	r := NewReactor()
	fired := make(chan string, 2)

	doomed := r.Timeout(20*time.Millisecond, func() { fired <- "doomed" })
	r.Timeout(60*time.Millisecond, func() { fired <- "sentinel" })

	r.TimeoutDelete(doomed)
	r.TimeoutDelete(doomed)
	r.TimeoutDelete(nil)

	go r.Run()
	defer r.Stop()

	select {
	case got := <-fired:
		if got != "sentinel" {
			t.Fatalf("cancelled timer fired: %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("sentinel never fired")
	}
}

// A timer may expire before the loop gets to run its callback; deleting it
// in that window must still win.
func TestTimeoutDeleteAfterExpiry(t *testing.T) {
	r := NewReactor()
	fired := make(chan string, 2)

	doomed := r.Timeout(time.Millisecond, func() { fired <- "doomed" })
	r.Timeout(50*time.Millisecond, func() { fired <- "sentinel" })

	time.Sleep(20 * time.Millisecond) // doomed has expired, but never ran
	r.TimeoutDelete(doomed)

	go r.Run()
	defer r.Stop()

	select {
	case got := <-fired:
		if got != "sentinel" {
			t.Fatalf("deleted-but-expired timer ran: %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("sentinel never fired")
	}
}

func TestOnReadableDeliversDatagrams(t *testing.T) {
	r := NewReactor()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer conn.Close()
	sender, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("bind sender: %v", err)
	}
	defer sender.Close()

	type rx struct {
		buf  []byte
		from netip.AddrPort
	}
	got := make(chan rx, 4)
	r.OnReadable(conn, func(buf []byte, from netip.AddrPort) {
		got <- rx{buf: buf, from: from}
	})

	go r.Run()
	defer r.Stop()

	dest := conn.LocalAddr().(*net.UDPAddr).AddrPort()
	if _, err := sender.WriteToUDPAddrPort([]byte("ping"), dest); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case m := <-got:
		if string(m.buf) != "ping" {
			t.Fatalf("payload = %q, want %q", m.buf, "ping")
		}
		if m.from.Port() != sender.LocalAddr().(*net.UDPAddr).AddrPort().Port() {
			t.Fatalf("from = %v, want the sender's port", m.from)
		}
	case <-time.After(time.Second):
		t.Fatal("datagram never delivered")
	}

	// After deregistration, datagrams are dropped on the floor.
	r.Post(func() { r.CancelReadable(conn) })
	if _, err := sender.WriteToUDPAddrPort([]byte("gone"), dest); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case m := <-got:
		t.Fatalf("datagram delivered after CancelReadable: %q", m.buf)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPostRunsOnLoop(t *testing.T) {
	r := NewReactor()
	done := make(chan struct{})

	go r.Run()
	defer r.Stop()

	r.Post(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("posted function never ran")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	r := NewReactor()
	stopped := make(chan struct{})
	go func() {
		r.Run()
		close(stopped)
	}()

	r.Stop()
	r.Stop()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
