package tcp

// isDupAck reports whether seg is a candidate duplicate ACK (RFC 5681 §2):
// pure ACK, no payload, no SYN/FIN, ack equal to snd.una, and the same
// advertised window as currently recorded.
func (c *Connection) isDupAck(seg Segment) bool {
	return seg.isDupAckCandidate() && seg.ACK == c.snd.UNA && seg.WND == c.snd.WND
}

// processAckProgress is the non-fast-recovery-entry portion of the ACK
// processing: it removes fully-ACKed entries from the retransmission queue,
// applies the RFC 5681/6582 congestion response appropriate to the current
// fast-recovery state, advances snd.una, and (subject to wl1/wl2) updates
// the send window.
func (c *Connection) processAckProgress(seg Segment, a Value) {
	smss := c.effectiveSMSS()
	acked := Size(a - c.snd.UNA)
	flightBefore := c.snd.flight()

	c.retx.removeAcked(a)

	switch {
	case c.cc.inFastRecovery && c.cc.recover.LessThan(a):
		// Full ACK: acknowledges everything up to and including recover.
		c.cc.exitFastRecoveryFull(flightBefore-acked, smss)
	case c.cc.inFastRecovery:
		// Partial ACK: new data acked, but not the full window that was
		// outstanding when fast recovery began.
		c.retransmitFastRetransmit(a)
		c.cc.partialAckDeflate(acked, smss)
		if c.cc.partialAckCount == 1 {
			c.resetRetxTimer()
		}
	default:
		c.cc.onFreshAckBytes(acked, smss)
	}

	c.snd.UNA = a
	c.resetRetxTimer()
	c.rtt.resetBackoff()

	if c.snd.canUpdateWindow(seg) {
		c.snd.updateWindow(seg)
	}
}

// processAck implements the full ACK-handling branch: spurious
// ACKs ahead of snd.nxt, duplicate-ACK counting and fast-retransmit entry,
// and fresh-ACK progress.
func (c *Connection) processAck(seg Segment) {
	a := seg.ACK
	smss := c.effectiveSMSS()

	switch {
	case c.snd.NXT.LessThan(a):
		// ACKs something never sent.
		c.sendRaw(Segment{SEQ: c.snd.NXT, WND: c.advertisedWindowUnscaled(), Flags: FlagACK}, nil, nil)
		return

	case a.LessThan(c.snd.UNA):
		// Older than snd.una: already acknowledged, nothing to do.
		return

	case c.isDupAck(seg):
		c.cc.dupAckCount++
		switch c.cc.dupAckCount {
		case 1:
			c.cc.limitedTransmitSent = 0
		case 3:
			if c.cc.recover.LessThan(a - 1) {
				flight := c.snd.flight()
				c.cc.enterFastRecovery(c.snd.UNA, c.snd.NXT, flight, smss)
				c.retransmitFastRetransmit(c.snd.UNA)
			}
		default:
			if c.cc.inFastRecovery {
				c.cc.cwnd += smss
			}
		}

	default: // snd.una <=m a <=m snd.nxt: fresh or repeat-of-una ACK.
		if a == c.snd.UNA {
			// Nothing new acked, so the congestion/retx/RTT bookkeeping in
			// processAckProgress does not apply; a window update (e.g. a
			// pure ACK reopening a previously zero window) still does,
			// since RFC 9293 Sec 3.10.7.2 governs it independently of
			// whether new data was acknowledged.
			if c.snd.canUpdateWindow(seg) {
				c.snd.updateWindow(seg)
			}
			return
		}
		c.processAckProgress(seg, a)
	}
}

// sampleRTTNearRange implements RFC 6298's sampling guidance: within half the
// receive window of rcv.nxt, take an RTT sample either from the timestamp
// echo (if both sides negotiated TSOPT) or from the classic retx-queue scan.
func (c *Connection) sampleRTTNearRange(seg Segment, opts parsedOptions) {
	if c.state.IsPreestablished() {
		return
	}
	diff := int64(seg.SEQ) - int64(c.rcv.NXT)
	if diff < 0 {
		diff = -diff
	}
	if Size(diff) >= c.rcv.WND/2 {
		return
	}

	if c.useTSOption && opts.hasTimestamp {
		if c.snd.UNA != c.snd.NXT && seg.ACK.LessThanEq(c.snd.NXT) && opts.tsecr != 0 {
			r := (c.outgoingTSVal() - opts.tsecr)
			c.rtt.sample(float64(r)/1000.0, c.cfg.Granularity, 1)
		}
		if opts.tsval != 0 && (c.tsRecent == 0 || c.tsRecent <= opts.tsval) && seg.SEQ.LessThanEq(c.tsLastAck) {
			c.tsRecent = opts.tsval
		}
		return
	}

	i := c.retx.findCovering(seg.ACK - 1)
	if i < 0 {
		return
	}
	e := &c.retx.entries[i]
	if e.retransmitted {
		return
	}
	expected := int((c.snd.flight() + 2*c.effectiveSMSS() - 1) / (2 * c.effectiveSMSS()))
	c.rtt.sample(c.now()-e.txTime, c.cfg.Granularity, expected)
}
