package tcp

import (
	"net/netip"
	"testing"
)

func TestDemuxUnmatchedSegmentGetsRST(t *testing.T) {
	p := newPair(t)

	stray := NewConnection(p.clientStack, smallConfig())
	if err := stray.Bind(netip.MustParseAddrPort("10.0.0.1:6000")); err != nil {
		t.Fatalf("bind: %v", err)
	}
	// No connect/listen: send a bare ACK toward an address nothing owns.
	seg := Segment{SEQ: 500, ACK: 900, Flags: FlagACK}
	if err := p.serverStack.emitSegment(
		netip.MustParseAddrPort("10.0.0.2:9999"),
		netip.MustParseAddrPort("10.0.0.1:6000"),
		seg, nil, 0, nil,
	); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(p.serverSink.out) != 1 {
		t.Fatalf("expected exactly one outbound frame, got %d", len(p.serverSink.out))
	}

	before := len(p.clientSink.out)
	p.deliver(t, p.serverSink.out[0], p.clientStack)
	if len(p.clientSink.out) != before+1 {
		t.Fatalf("unmatched segment should have elicited a RST from the client stack")
	}
	got := p.clientSink.out[len(p.clientSink.out)-1].segmentView()
	if !got.Flags.HasAny(FlagRST) {
		t.Fatalf("reply to an unmatched segment should carry RST, got flags %s", got.Flags)
	}
	if got.SEQ != seg.ACK {
		t.Fatalf("RST's SEQ should echo the inbound ACK (%v), got %v", seg.ACK, got.SEQ)
	}
}

func TestDemuxNeverRepliesRSTWithRST(t *testing.T) {
	p := newPair(t)
	seg := Segment{SEQ: 1, Flags: FlagRST}
	if err := p.serverStack.emitSegment(
		netip.MustParseAddrPort("10.0.0.2:9999"),
		netip.MustParseAddrPort("10.0.0.1:7000"),
		seg, nil, 0, nil,
	); err != nil {
		t.Fatalf("emit: %v", err)
	}
	p.deliver(t, p.serverSink.out[0], p.clientStack)
	if len(p.clientSink.out) != 0 {
		t.Fatalf("an inbound RST must never provoke a reply RST")
	}
}

func TestBindRejectsDuplicateLocalAddress(t *testing.T) {
	p := newPair(t)
	dup := NewConnection(p.clientStack, smallConfig())
	if err := dup.Bind(p.client.LocalAddr()); err != ErrAddrInUse {
		t.Fatalf("Bind on an in-use address: got %v, want ErrAddrInUse", err)
	}
}
