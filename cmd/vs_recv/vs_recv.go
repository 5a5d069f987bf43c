package main

import (
	"flag"
	"fmt"
	"net/netip"
	"os"
	"strconv"

	"rudp-vs-pa/event"
	protocol "rudp-vs-pa/pkg"
	"rudp-vs-pa/vsftp"
)

// vs_recv: a simple RUDP receiver to receive files from remote hosts.
// It takes only one argument - the local port to be used.

var debug = flag.Bool("d", false, "print debug messages")

// rxfile tracks one partially received file per peer.
type rxfile struct {
	file *os.File
	name string
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: vs_recv [-d] port")
	os.Exit(1)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
	}
	port, err := strconv.Atoi(flag.Arg(0))
	if err != nil || port <= 0 {
		fmt.Fprintf(os.Stderr, "Bad destination port: %s\n", flag.Arg(0))
		os.Exit(1)
	}

	if *debug {
		fmt.Printf("RUDP receiver waiting on port %d.\n", port)
	}

	reactor := event.NewReactor()
	stack := protocol.NewRUDPStack(reactor)

	sock, err := stack.Socket(port)
	if err != nil {
		fmt.Fprintln(os.Stderr, "vs_recv:", err)
		os.Exit(1)
	}

	transfers := make(map[netip.AddrPort]*rxfile)

	sock.SetRecvHandler(func(s *protocol.RUDPSocket, from netip.AddrPort, data []byte) {
		m, err := vsftp.Unmarshal(data)
		if err != nil {
			fmt.Fprintln(os.Stderr, "vs_recv: dropping message:", err)
			return
		}

		switch m.Type {
		case vsftp.TypeBegin:
			if rx, ok := transfers[from]; ok {
				rx.file.Close()
			}
			file, err := os.Create(m.Filename)
			if err != nil {
				fmt.Fprintln(os.Stderr, "vs_recv: create:", err)
				return
			}
			transfers[from] = &rxfile{file: file, name: m.Filename}
			if *debug {
				fmt.Fprintf(os.Stderr, "vs_recv: BEGIN %q from %s\n", m.Filename, from)
			}

		case vsftp.TypeData:
			rx, ok := transfers[from]
			if !ok {
				fmt.Fprintf(os.Stderr, "vs_recv: DATA from %s with no transfer in progress\n", from)
				return
			}
			if _, err := rx.file.Write(m.Data); err != nil {
				fmt.Fprintln(os.Stderr, "vs_recv: write:", err)
			}

		case vsftp.TypeEnd:
			rx, ok := transfers[from]
			if !ok {
				return
			}
			rx.file.Close()
			delete(transfers, from)
			if *debug {
				fmt.Fprintf(os.Stderr, "vs_recv: END %q from %s\n", rx.name, from)
			}
		}
	})

	sock.SetEventHandler(func(s *protocol.RUDPSocket, ev protocol.EventType, remote netip.AddrPort) {
		switch ev {
		case protocol.EventTimeout:
			fmt.Fprintf(os.Stderr, "vs_recv: time out in communication with %s\n", remote)
		case protocol.EventClosed:
			if *debug {
				fmt.Fprintln(os.Stderr, "vs_recv: socket closed")
			}
		}
	})

	reactor.Run()
}
