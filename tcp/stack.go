package tcp

import (
	"log/slog"
	"net/netip"
)

// Clock is the environment's source of monotonic time, in seconds, consumed
// by TimerTick scheduling and RTT sampling.
type Clock interface {
	Now() float64
}

// Timer is the environment's periodic-tick facility: it must invoke cb every
// granularity seconds.
type Timer interface {
	TickEvery(granularity float64, cb func())
}

// PacketSink transmits a prepared TCP segment, wrapped by the caller's IP
// layer. The core never waits on it: there is no backpressure on emission.
type PacketSink interface {
	Emit(local, peer netip.AddrPort, segment []byte) error
}

// synQueueCapacity is the stack-wide bound on half-open passive connections
// (the listener/accept-queue contract).
const synQueueCapacity = 4096

// Stack owns every Connection and Listener, and the single shared SYN queue,
// so that no package-level mutable state exists outside of it (the
// design note on global mutable state).
type Stack struct {
	logger

	clock Clock
	timer Timer
	sink  PacketSink

	conns     map[netip.AddrPort]map[netip.AddrPort]*Connection
	listeners map[netip.AddrPort]*Listener

	synQueue []*Connection

	nextEphemeral uint16
	rngState      uint64
}

// NewStack creates a Stack bound to the given collaborators and arms the
// periodic timer_tick driver at granularity g.
func NewStack(clock Clock, timer Timer, sink PacketSink, g float64, log *slog.Logger, seed uint64) *Stack {
	s := &Stack{
		logger:        logger{log: log},
		clock:         clock,
		timer:         timer,
		sink:          sink,
		conns:         make(map[netip.AddrPort]map[netip.AddrPort]*Connection),
		listeners:     make(map[netip.AddrPort]*Listener),
		nextEphemeral: 49152,
		rngState:      seed | 1,
	}
	if timer != nil {
		timer.TickEvery(g, s.tickAll)
	}
	return s
}

// nextRand advances the stack's deterministic generator (xorshift64*),
// giving reproducible-given-seed ISS values without pulling in a CSPRNG
// this engine has no threat model calling for. It does not feed the
// timestamp offset, which comes from ConnConfig.TSHash.
func (s *Stack) nextRand() uint64 {
	x := s.rngState
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	s.rngState = x
	return x * 2685821657736338717
}

func (s *Stack) tickAll() {
	for _, byPeer := range s.conns {
		for _, c := range byPeer {
			c.TimerTick()
		}
	}
}

// register adds c to the demux table under its current 4-tuple.
func (s *Stack) register(c *Connection) {
	byPeer := s.conns[c.local]
	if byPeer == nil {
		byPeer = make(map[netip.AddrPort]*Connection)
		s.conns[c.local] = byPeer
	}
	byPeer[c.peer] = c
}

// unregister removes c from the demux table, called once it reaches CLOSED.
func (s *Stack) unregister(c *Connection) {
	byPeer := s.conns[c.local]
	if byPeer == nil {
		return
	}
	delete(byPeer, c.peer)
	if len(byPeer) == 0 {
		delete(s.conns, c.local)
	}
}

// lookup finds the connection registered under the exact 4-tuple (local,
// peer), or nil. Listeners are not found here; Demux checks s.listeners.
func (s *Stack) lookup(local, peer netip.AddrPort) *Connection {
	if byPeer := s.conns[local]; byPeer != nil {
		if c := byPeer[peer]; c != nil {
			return c
		}
	}
	return nil
}

// AllocatePort returns an unused ephemeral port in [49152, 61000], per
// an ephemeral port when bound with port 0, or an error if the range is exhausted.
func (s *Stack) AllocatePort(ip netip.Addr) (uint16, error) {
	const lo, hi = 49152, 61000
	for i := 0; i < hi-lo; i++ {
		p := s.nextEphemeral
		s.nextEphemeral++
		if s.nextEphemeral > hi {
			s.nextEphemeral = lo
		}
		if s.conns[netip.AddrPortFrom(ip, p)] == nil {
			return p, nil
		}
	}
	return 0, ErrNoPorts
}

// Demux routes an inbound TCP frame to its owning connection, or to the
// listener bound to its destination address, per the usual socket-manager
// contract; if neither matches, it issues a RST.
func (s *Stack) Demux(srcIP, dstIP netip.Addr, frm Frame, payloadLen int) error {
	local := netip.AddrPortFrom(dstIP, frm.DestinationPort())
	peer := netip.AddrPortFrom(srcIP, frm.SourcePort())
	seg := frm.Segment(payloadLen)

	if c := s.lookup(local, peer); c != nil {
		opts, _ := parseOptions(frm.Options())
		return c.rx(seg, frm.Payload(), opts)
	}
	if l := s.listeners[local]; l != nil {
		opts, _ := parseOptions(frm.Options())
		return l.onSegment(peer, seg, opts)
	}
	return s.sendRST(local, peer, seg)
}

// sendRST implements the unmatched-segment RST rule of RFC 9293 §3.10.7.1: if the inbound
// segment carries ACK, the RST's SEQ is that ACK value; otherwise SEQ=0 and
// ACK is set to the inbound SEQ plus its length, with the RST's own ACK flag
// also set.
func (s *Stack) sendRST(local, peer netip.AddrPort, seg Segment) error {
	if seg.Flags.HasAny(FlagRST) {
		return nil // never respond to a RST with a RST
	}
	var rst Segment
	rst.Flags = FlagRST
	if seg.Flags.HasAny(FlagACK) {
		rst.SEQ = seg.ACK
	} else {
		rst.SEQ = 0
		rst.ACK = seg.SEQ.UpdateForward(seg.LEN())
		rst.Flags |= FlagACK
	}
	return s.emitSegment(local, peer, rst, nil, 0, nil)
}

// emitSegment builds a wire-format TCP segment from seg and hands it to the
// PacketSink collaborator.
func (s *Stack) emitSegment(local, peer netip.AddrPort, seg Segment, payload []byte, wndShift uint8, opts []byte) error {
	optLen := len(opts)
	pad := (4 - optLen%4) % 4
	hdrLen := sizeHeaderTCP + optLen + pad
	buf := make([]byte, hdrLen+len(payload))
	frm, err := NewFrame(buf)
	if err != nil {
		return err
	}
	frm.ClearHeader()
	frm.SetSourcePort(local.Port())
	frm.SetDestinationPort(peer.Port())
	wnd := seg.WND
	if !seg.Flags.HasAny(FlagSYN) && wndShift > 0 {
		wnd >>= Size(wndShift)
		if wnd > 0xFFFF {
			wnd = 0xFFFF
		}
	}
	offset := uint8(hdrLen / 4)
	frm.SetSegment(Segment{SEQ: seg.SEQ, ACK: seg.ACK, WND: wnd, Flags: seg.Flags}, offset)
	copy(buf[sizeHeaderTCP:], opts)
	copy(buf[hdrLen:], payload)
	frm.SetCRC(0)
	frm.SetCRC(PseudoHeaderChecksum(local.Addr().As4(), peer.Addr().As4(), uint16(len(buf)), buf))
	if s.sink == nil {
		return nil
	}
	return s.sink.Emit(local, peer, buf)
}
