package tcp

import (
	"net/netip"
	"testing"
)

// fakeClock is a manually-advanced Clock used throughout the scenario tests
// so timer-driven behavior (RTO, ZWP, TIME-WAIT) is deterministic.
type fakeClock struct{ t float64 }

func (c *fakeClock) Now() float64      { return c.t }
func (c *fakeClock) advance(d float64) { c.t += d }

// outboxFrame is one segment captured by a queueingSink before delivery.
type outboxFrame struct {
	local, peer netip.AddrPort
	raw         []byte
}

// queueingSink is a PacketSink that queues every emitted frame rather than
// delivering it inline, so scenario tests can drive delivery order and loss
// explicitly instead of relying on deep synchronous re-entrancy.
type queueingSink struct {
	out []outboxFrame
}

func (s *queueingSink) Emit(local, peer netip.AddrPort, segment []byte) error {
	s.out = append(s.out, outboxFrame{local: local, peer: peer, raw: append([]byte(nil), segment...)})
	return nil
}

func smallConfig() ConnConfig {
	cfg := NewConnConfig()
	cfg.TxMax = 1 << 16
	cfg.RxMax = 1 << 16
	cfg.SMSS = 1460
	return cfg
}

// pair bundles the two endpoints of a harness-wired connection test along
// with their clock and outbound queues.
type pair struct {
	clock          *fakeClock
	clientStack    *Stack
	serverStack    *Stack
	clientSink     *queueingSink
	serverSink     *queueingSink
	client         *Connection
	serverListener *Connection

	// dropToServer/dropToClient, when non-nil, decide whether to silently
	// discard a segment instead of delivering it, simulating packet loss.
	dropToServer func(seg Segment) bool
	dropToClient func(seg Segment) bool
}

func newPair(t *testing.T) *pair {
	t.Helper()
	clock := &fakeClock{}
	clientSink := &queueingSink{}
	serverSink := &queueingSink{}
	clientStack := NewStack(clock, nil, clientSink, 0.1, nil, 1)
	serverStack := NewStack(clock, nil, serverSink, 0.1, nil, 2)

	client := NewConnection(clientStack, smallConfig())
	if err := client.Bind(netip.MustParseAddrPort("10.0.0.1:5000")); err != nil {
		t.Fatalf("client bind: %v", err)
	}

	serverListener := NewConnection(serverStack, smallConfig())
	if err := serverListener.Bind(netip.MustParseAddrPort("10.0.0.2:80")); err != nil {
		t.Fatalf("server bind: %v", err)
	}
	if err := serverListener.Listen(8); err != nil {
		t.Fatalf("server listen: %v", err)
	}

	return &pair{
		clock: clock, clientStack: clientStack, serverStack: serverStack,
		clientSink: clientSink, serverSink: serverSink,
		client: client, serverListener: serverListener,
	}
}

// pump repeatedly drains whichever outbox has frames, delivering each to the
// opposite stack's Demux, until both are empty or the round cap is hit. Every
// deliver can itself enqueue more frames (an ACK, a reply), so this is a
// breadth-first drain of the simulated wire rather than a single pass.
func (p *pair) pump(t *testing.T) {
	t.Helper()
	for round := 0; round < 1000; round++ {
		if len(p.clientSink.out) == 0 && len(p.serverSink.out) == 0 {
			return
		}
		for len(p.clientSink.out) > 0 {
			f := p.clientSink.out[0]
			p.clientSink.out = p.clientSink.out[1:]
			if p.dropToServer != nil && p.dropToServer(f.segmentView()) {
				continue
			}
			p.deliver(t, f, p.serverStack)
		}
		for len(p.serverSink.out) > 0 {
			f := p.serverSink.out[0]
			p.serverSink.out = p.serverSink.out[1:]
			if p.dropToClient != nil && p.dropToClient(f.segmentView()) {
				continue
			}
			p.deliver(t, f, p.clientStack)
		}
	}
	t.Fatalf("pump: exceeded round cap, possible infinite retransmission loop")
}

// segmentView decodes just enough of the frame for a drop predicate to
// inspect its sequence-space fields.
func (f outboxFrame) segmentView() Segment {
	frm, err := NewFrame(f.raw)
	if err != nil {
		return Segment{}
	}
	return frm.Segment(len(f.raw) - frm.HeaderLength())
}

func (p *pair) deliver(t *testing.T, f outboxFrame, dst *Stack) {
	t.Helper()
	frm, err := NewFrame(f.raw)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	payloadLen := len(f.raw) - frm.HeaderLength()
	if err := dst.Demux(f.local.Addr(), f.peer.Addr(), frm, payloadLen); err != nil {
		t.Fatalf("demux: %v", err)
	}
}

// advanceAndTick moves the shared clock forward by d seconds and fires
// TimerTick on every connection given, then drains whatever that produces.
// Stacks in these tests run with a nil Timer, so nothing ticks connections
// automatically; tests drive it explicitly to keep timing deterministic.
func (p *pair) advanceAndTick(t *testing.T, d float64, conns ...*Connection) {
	t.Helper()
	p.clock.advance(d)
	for _, c := range conns {
		c.TimerTick()
	}
	p.pump(t)
}

// handshake drives a full 3-way handshake to completion and returns the
// server-side accepted child connection.
func (p *pair) handshake(t *testing.T) *Connection {
	t.Helper()
	if err := p.client.Connect(netip.MustParseAddrPort("10.0.0.2:80")); err != nil {
		t.Fatalf("connect: %v", err)
	}
	p.pump(t)
	server, err := p.serverListener.Accept()
	if err != nil {
		t.Fatalf("accept after handshake: %v", err)
	}
	if p.client.State() != StateEstablished {
		t.Fatalf("client state after handshake: %s", p.client.State())
	}
	if server.State() != StateEstablished {
		t.Fatalf("server state after handshake: %s", server.State())
	}
	return server
}
