package tcp

import (
	"net/netip"
	"testing"
)

func TestHandshakeEstablishesBothSides(t *testing.T) {
	p := newPair(t)
	server := p.handshake(t)

	if p.client.PeerAddr() != server.LocalAddr() {
		t.Fatalf("client peer %s != server local %s", p.client.PeerAddr(), server.LocalAddr())
	}
	if server.PeerAddr() != p.client.LocalAddr() {
		t.Fatalf("server peer %s != client local %s", server.PeerAddr(), p.client.LocalAddr())
	}
	// Both sides must agree on each other's initial sequence numbers.
	if p.client.snd.ISS != server.rcv.IRS {
		t.Fatalf("client ISS %v != server IRS %v", p.client.snd.ISS, server.rcv.IRS)
	}
	if server.snd.ISS != p.client.rcv.IRS {
		t.Fatalf("server ISS %v != client IRS %v", server.snd.ISS, p.client.rcv.IRS)
	}
	if p.client.snd.UNA != p.client.snd.NXT {
		t.Fatalf("client has unacked data after handshake: una=%v nxt=%v", p.client.snd.UNA, p.client.snd.NXT)
	}
	if server.snd.UNA != server.snd.NXT {
		t.Fatalf("server has unacked data after handshake: una=%v nxt=%v", server.snd.UNA, server.snd.NXT)
	}
}

func TestSecondAcceptWouldBlock(t *testing.T) {
	p := newPair(t)
	p.handshake(t)
	if _, err := p.serverListener.Accept(); err != ErrWouldBlock {
		t.Fatalf("second Accept: got %v, want ErrWouldBlock", err)
	}
}

func TestListenBacklogBoundsAcceptQueue(t *testing.T) {
	p := newPair(t)
	// Replace the default-backlog listener with one that only accepts a
	// single pending connection at a time.
	p.serverListener = NewConnection(p.serverStack, smallConfig())
	if err := p.serverListener.Bind(netip.MustParseAddrPort("10.0.0.2:81")); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := p.serverListener.Listen(1); err != nil {
		t.Fatalf("listen: %v", err)
	}

	first := NewConnection(p.clientStack, smallConfig())
	if err := first.Bind(netip.MustParseAddrPort("10.0.0.1:5001")); err != nil {
		t.Fatalf("bind first: %v", err)
	}
	second := NewConnection(p.clientStack, smallConfig())
	if err := second.Bind(netip.MustParseAddrPort("10.0.0.1:5002")); err != nil {
		t.Fatalf("bind second: %v", err)
	}

	if err := first.Connect(netip.MustParseAddrPort("10.0.0.2:81")); err != nil {
		t.Fatalf("connect first: %v", err)
	}
	p.pump(t)
	if err := second.Connect(netip.MustParseAddrPort("10.0.0.2:81")); err != nil {
		t.Fatalf("connect second: %v", err)
	}
	p.pump(t)

	if first.State() != StateEstablished {
		t.Fatalf("first connect did not establish: %s", first.State())
	}
	// The listener's accept queue only held room for one; the first
	// connection filled it, so the listener dropped the second SYN and no
	// second child was ever created or promoted.
	if _, err := p.serverListener.Accept(); err != nil {
		t.Fatalf("accept first: %v", err)
	}
	if _, err := p.serverListener.Accept(); err != ErrWouldBlock {
		t.Fatalf("accept when queue should be drained once: got %v", err)
	}
}
