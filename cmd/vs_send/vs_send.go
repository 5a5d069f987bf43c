package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"strings"

	"rudp-vs-pa/event"
	protocol "rudp-vs-pa/pkg"
	"rudp-vs-pa/vsftp"
)

// vs_send: a simple RUDP sender that can be used to transfer files.
// Arguments: destination addresses (host:port) and a list of files.

var debug = flag.Bool("d", false, "print debug messages")

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: vs_send [-d] host1:port1 [host2:port2] ... file1 [file2] ...")
	os.Exit(1)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()

	// Collect peers: every leading host:port argument
	var peers []netip.AddrPort
	i := 0
	for ; i < len(args); i++ {
		if !strings.Contains(args[i], ":") {
			break
		}
		addr, err := net.ResolveUDPAddr("udp4", args[i])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Can't locate host %q: %v\n", args[i], err)
			os.Exit(1)
		}
		peers = append(peers, addr.AddrPort())
	}
	files := args[i:]
	if len(peers) == 0 || len(files) == 0 {
		usage()
	}

	reactor := event.NewReactor()
	stack := protocol.NewRUDPStack(reactor)

	// One socket per file; stop the loop once every transfer has closed.
	remaining := len(files)
	for _, filename := range files {
		if err := sendFile(stack, reactor, filename, peers, &remaining); err != nil {
			fmt.Fprintln(os.Stderr, "vs_send:", err)
			os.Exit(1)
		}
	}

	reactor.Run()
}

// sendFile opens an RUDP socket for one file and queues the whole transfer:
// BEGIN with the file name, the file in MaxData chunks, then END.
func sendFile(stack *protocol.RUDPStack, reactor *event.Reactor, filename string, peers []netip.AddrPort, remaining *int) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	sock, err := stack.Socket(0)
	if err != nil {
		return err
	}
	sock.SetEventHandler(func(s *protocol.RUDPSocket, ev protocol.EventType, remote netip.AddrPort) {
		switch ev {
		case protocol.EventTimeout:
			fmt.Fprintf(os.Stderr, "vs_send: time out in communication with %s\n", remote)
			os.Exit(1)
		case protocol.EventClosed:
			if *debug {
				fmt.Fprintln(os.Stderr, "vs_send: socket closed")
			}
			*remaining = *remaining - 1
			if *remaining == 0 {
				reactor.Stop()
			}
		}
	})

	// Strip off any leading path name
	name := filename
	if idx := strings.LastIndexByte(name, '/'); idx != -1 {
		name = name[idx+1:]
	}
	if len(name) > vsftp.FilenameLength {
		name = name[:vsftp.FilenameLength]
	}

	begin := &vsftp.Message{Type: vsftp.TypeBegin, Filename: name}
	if err := sendToPeers(stack, sock, begin, peers, "BEGIN"); err != nil {
		return err
	}

	buf := make([]byte, vsftp.MaxData)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			data := &vsftp.Message{Type: vsftp.TypeData, Data: buf[:n]}
			if err := sendToPeers(stack, sock, data, peers, "DATA"); err != nil {
				return err
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	end := &vsftp.Message{Type: vsftp.TypeEnd}
	if err := sendToPeers(stack, sock, end, peers, "END"); err != nil {
		return err
	}
	return stack.Close(sock)
}

func sendToPeers(stack *protocol.RUDPStack, sock *protocol.RUDPSocket, m *vsftp.Message, peers []netip.AddrPort, kind string) error {
	buf, err := m.Marshal()
	if err != nil {
		return err
	}
	for _, peer := range peers {
		if *debug {
			fmt.Fprintf(os.Stderr, "vs_send: send %s (%d bytes) to %s\n", kind, len(buf), peer)
		}
		if err := stack.Sendto(sock, buf, peer); err != nil {
			return err
		}
	}
	return nil
}
