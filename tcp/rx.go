package tcp

// rx is the engine's per-segment entry point: acceptability
// and ACK processing, in-order reassembly and out-of-order replay, followed
// by the end-of-chain maybe_send/flush-ACK/flush-FIN/ZWP sequence.
func (c *Connection) rx(seg Segment, payload []byte, opts parsedOptions) error {
	c.traceSeg("rx", seg)
	c.sampleRTTNearRange(seg, opts)

	switch c.state {
	case StateClosed, StateInitial:
		if !seg.Flags.HasAny(FlagRST) {
			c.stack.sendRST(c.local, c.peer, seg)
		}
		return nil
	case StateListen:
		return c.rxListen(seg, opts)
	case StateSynSent:
		c.rxSynSent(seg, opts)
	default:
		c.rxOther(seg, payload, opts)
	}

	c.replayOutOfOrder()
	c.maybeSend()
	c.flushPendingAck(false)
	c.flushPendingFIN()
	c.maintainZWP()
	c.unblock()
	return nil
}

// rxListen handles a segment delivered through the connection table to a
// Connection in StateListen (Listener.onSegment normally sees inbound SYNs
// first). A bare SYN is ignored here; anything else is answered with a RST.
func (c *Connection) rxListen(seg Segment, opts parsedOptions) error {
	if seg.Flags.Mask() != FlagSYN {
		return c.stack.sendRST(c.local, c.peer, seg)
	}
	return nil
}

// rxSynSent implements RFC 9293 p66's SYN_SENT row: on a valid
// SYN+ACK, advance snd.una, record IRS, and establish; on a bare SYN (the
// simultaneous-open case), move to SYN_RECEIVED and send our own SYN+ACK.
func (c *Connection) rxSynSent(seg Segment, opts parsedOptions) {
	// RFC 9293 p66: the ACK is acceptable iff it falls in (snd.una, snd.nxt].
	ackValid := seg.Flags.HasAny(FlagACK) && c.snd.UNA.LessThan(seg.ACK) && seg.ACK.LessThanEq(c.snd.NXT)
	if seg.Flags.HasAny(FlagRST) {
		if seg.Flags.HasAny(FlagACK) && seg.ACK == c.snd.NXT {
			c.deleteTCB()
		}
		return
	}
	if !seg.Flags.HasAny(FlagSYN) {
		return
	}
	c.rcv.IRS = seg.SEQ
	c.rcv.NXT = seg.SEQ + 1
	c.rcv.WND = Size(c.rxBuf.Size())
	if opts.hasWndScale && c.cfg.UseWindowScale {
		c.sndWndShift = opts.wndScale
	}
	if opts.hasTimestamp && c.cfg.UseTimestamps {
		c.useTSOption = true
		c.tsRecent = opts.tsval
		c.tsLastAck = seg.SEQ
	}

	if seg.Flags.HasAny(FlagACK) && ackValid {
		c.snd.UNA = seg.ACK
		c.retx.removeAcked(seg.ACK)
		c.snd.WND = seg.WND // literal, unscaled, since this is the peer's SYN
		c.snd.WL1 = seg.SEQ
		c.snd.WL2 = seg.ACK
		c.state = StateEstablished
		c.sendRaw(Segment{SEQ: c.snd.NXT, WND: c.advertisedWindowUnscaled(), Flags: FlagACK}, nil, nil)
		c.unblock()
	} else {
		// Simultaneous open: peer sent a bare SYN with no ACK of ours.
		c.state = StateSynRcvd
		out := Segment{SEQ: c.snd.ISS, ACK: c.rcv.NXT, WND: c.advertisedWindowUnscaled(), Flags: synack}
		c.sendRaw(out, nil, c.synOptions())
		c.retx.push(out, nil, c.now())
		c.armRetxTimer()
	}
}

// rxOther implements the shared receive-processing sequence used by every state
// from SYN_RECEIVED onward: acceptability, seq-position classification,
// RST handling, in-window SYN reset, ACK requirement and processing, payload
// delivery, and FIN processing.
func (c *Connection) rxOther(seg Segment, payload []byte, opts parsedOptions) {
	if !c.rcv.acceptable(seg) {
		if !seg.Flags.HasAny(FlagRST) {
			c.ack.setPending(false, c.cfg.Granularity)
		}
		return
	}

	if c.state == StateTimeWait {
		// Any in-window segment (typically the peer's retransmitted FIN,
		// whose ACK we lost) restarts the quiet timer instead of letting it
		// lapse while the peer might still be retransmitting.
		c.tw.restart(c.now(), c.cfg.MSL)
	}

	if seg.Flags.HasAny(FlagRST) {
		c.handleRST()
		return
	}

	if seg.Flags.HasAny(FlagSYN) {
		// SYN inside an established window is connection-fatal (RFC 793 p71).
		c.sendRaw(Segment{SEQ: c.snd.NXT, Flags: FlagRST}, nil, nil)
		c.deleteTCB()
		return
	}

	if !seg.Flags.HasAny(FlagACK) {
		return // silently discarded per RFC 9293 §3.10.7.4 step 4
	}

	switch c.state {
	case StateSynRcvd:
		if c.snd.UNA.LessThanEq(seg.ACK) && seg.ACK.LessThanEq(c.snd.NXT) {
			c.snd.UNA = seg.ACK
			c.retx.removeAcked(seg.ACK)
			c.snd.WND = seg.WND
			c.snd.WL1 = seg.SEQ
			c.snd.WL2 = seg.ACK
			c.state = StateEstablished
			if c.parentListener != nil {
				c.parentListener.promoteToAcceptQueue(c)
			}
		} else {
			c.sendRaw(Segment{SEQ: seg.ACK, Flags: FlagRST}, nil, nil)
			return
		}
	default:
		c.processAck(seg)
		if c.fin.acksOurFin(seg.ACK) {
			c.onFinAcked()
		}
	}

	c.processPayload(seg, payload)
	c.processFIN(seg)
}

// processPayload implements the payload-processing step: trims
// already-delivered prefix, clamps to the receive window, appends in-order
// bytes to rx_buf and queues out-of-order bytes, and advances rcv.nxt/wnd.
func (c *Connection) processPayload(seg Segment, payload []byte) {
	if seg.DATALEN == 0 {
		return
	}
	if c.rcv.NXT.LessThan(seg.SEQ) {
		// Future data: hold for reassembly, request an immediate ACK.
		c.ooo.insert(seg, payload)
		c.ack.setPending(false, c.cfg.Granularity)
		return
	}

	offset := int(Size(c.rcv.NXT - seg.SEQ))
	if offset >= len(payload) {
		// Fully-duplicate retransmission; still ACK it.
		c.ack.setPending(true, c.cfg.Granularity)
		return
	}
	data := payload[offset:]
	if Size(len(data)) > c.rcv.WND {
		data = data[:c.rcv.WND]
	}
	if !c.shutRD {
		c.rxBuf.Write(data)
	}
	c.rcv.NXT = c.rcv.NXT.UpdateForward(Size(len(data)))
	c.tsLastAck = seg.SEQ
	if c.rcv.WND > Size(len(data)) {
		c.rcv.WND -= Size(len(data))
	} else {
		c.rcv.WND = 0
	}
	c.ack.setPending(true, c.cfg.Granularity)
}

// processFIN implements the FIN-processing step and the relevant
// rows of RFC 9293's state table.
func (c *Connection) processFIN(seg Segment) {
	if !seg.Flags.HasAny(FlagFIN) {
		return
	}
	finSeq := seg.SEQ.UpdateForward(seg.DATALEN)
	if c.rcv.NXT != finSeq {
		return // not yet in order; will be replayed once earlier data arrives
	}
	c.rcv.NXT = c.rcv.NXT + 1
	c.ack.setPending(false, c.cfg.Granularity)

	switch c.state {
	case StateEstablished:
		c.state = StateCloseWait
	case StateFinWait1:
		if c.fin.acksOurFin(seg.ACK) {
			c.enterTimeWait()
		} else {
			c.state = StateClosing
		}
	case StateFinWait2:
		c.enterTimeWait()
	case StateCloseWait, StateClosing, StateLastAck, StateTimeWait:
		// Retransmitted FIN in an already-closing state; just re-ACK.
	}
	c.sendRaw(Segment{SEQ: c.snd.NXT, WND: c.advertisedWindowUnscaled(), Flags: FlagACK}, nil, nil)
	c.unblock()
}

func (c *Connection) onFinAcked() {
	switch c.state {
	case StateFinWait1:
		c.state = StateFinWait2
	case StateClosing:
		c.enterTimeWait()
	case StateLastAck:
		c.deleteTCB()
	}
}

func (c *Connection) enterTimeWait() {
	c.state = StateTimeWait
	c.tw.start(c.now(), c.cfg.MSL)
}

// handleRST implements the "any state → RX RST (in-window) → delete TCB"
// row; an RST received in TIME_WAIT deletes the TCB the same way.
func (c *Connection) handleRST() {
	c.deleteTCB()
}

// replayOutOfOrder pops and reprocesses every out-of-order segment that has
// become in-order, in ascending sequence order, before any new ACK is sent
// (RFC 1122 §4.2.2.20).
func (c *Connection) replayOutOfOrder() {
	for {
		e, ok := c.ooo.popReady(c.rcv.NXT)
		if !ok {
			return
		}
		c.processPayload(e.seg, e.payload)
		c.processFIN(e.seg)
	}
}
