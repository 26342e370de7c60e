package tcp

// retxOnRTOCount bounds how many segments a single RTO-driven retransmit
// resends from the head of the queue (RFC 6298 §5.4: the earliest
// unacknowledged segment).
const retxOnRTOCount = 1

// sendRaw builds and emits a segment. It leaves the retransmission queue
// alone (callers decide whether the segment belongs there); it records the
// send time and, for a segment carrying ACK, clears any owed ACK.
func (c *Connection) sendRaw(seg Segment, payload []byte, opts []byte) {
	seg.ACK = c.rcv.NXT
	if c.state.hasIRS() {
		seg.Flags |= FlagACK
	}
	if seg.WND == 0 && !seg.Flags.HasAny(FlagSYN) {
		seg.WND = c.advertisedWindowUnscaled()
	}
	if opts == nil && c.useTSOption && !seg.Flags.HasAny(FlagSYN) {
		tsecr := uint32(0)
		if seg.Flags.HasAny(FlagACK) {
			tsecr = c.tsRecent
		}
		opts = AppendTimestamps(opts, c.outgoingTSVal(), tsecr)
	}
	c.traceSeg("tx", seg)
	c.stack.emitSegment(c.local, c.peer, seg, payload, c.sndWndShift, opts)
	if seg.Flags.HasAny(FlagACK) {
		c.ack.clear()
	}
	c.hasLastSend = true
	c.lastSendTS = c.now()
}

// Send appends data to tx_buf (truncating to free space), then drives
// maybeSend.
func (c *Connection) Send(data []byte) (int, error) {
	if !c.state.canSend() {
		return 0, ErrBadState
	}
	if c.fin.pending || c.fin.sent {
		return 0, ErrConnClosed
	}
	n := c.txBuf.Write(data)
	c.maybeSend()
	return n, nil
}

// Recv drains up to len(p) bytes from rx_buf. An empty buffer yields
// (0, nil), both before and after the peer's FIN: Recv does not report end
// of stream, which shows only in State() (e.g. CLOSE_WAIT). After a read
// shutdown it returns ErrShutForReading.
func (c *Connection) Recv(p []byte) (int, error) {
	if c.shutRD {
		return 0, ErrShutForReading
	}
	n, err := c.rxBuf.Read(p)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// maybeSend implements segmentation: idle-restart window reset, congestion and
// peer-window clamping, then segmentizing tx_buf into the wire.
func (c *Connection) maybeSend() {
	if !c.state.IsSynchronized() && c.state != StateSynRcvd {
		return
	}
	smss := c.effectiveSMSS()
	c.cc.initIfNeeded(smss)

	now := c.now()
	if c.hasLastSend && now-c.lastSendTS > c.rtt.rto {
		c.cc.cwnd = restartWindow(smss, c.cc.cwnd)
	}

	window := c.snd.WND
	if eff := c.cc.effectiveWindow(smss); eff < window {
		window = eff
	}
	maxSend := Size(0)
	flight := c.snd.flight()
	if window > flight {
		maxSend = window - flight
	}

	for maxSend > 0 && c.txBuf.Buffered() > 0 {
		segLen := Size(c.txBuf.Buffered())
		if segLen > smss {
			segLen = smss
		}
		if segLen > maxSend {
			segLen = maxSend
		}
		payload := make([]byte, segLen)
		c.txBuf.Peek(payload, 0)

		seg := Segment{SEQ: c.snd.NXT, DATALEN: segLen, WND: c.advertisedWindowUnscaled()}
		if segLen == Size(c.txBuf.Buffered()) {
			seg.Flags |= FlagPSH
		}
		c.sendRaw(seg, payload, nil)
		c.txBuf.Discard(int(segLen))
		c.retx.push(seg, payload, now)
		c.snd.NXT = c.snd.NXT.UpdateForward(segLen)
		c.armRetxTimer()

		maxSend -= segLen
	}
}

// armRetxTimer starts the retransmission timer if it is not already
// running (RFC 6298's RTO-arming rule).
func (c *Connection) armRetxTimer() {
	if !c.retxActive {
		c.retxActive = true
		c.retxStart = c.now()
	}
}

func (c *Connection) resetRetxTimer() {
	if c.retx.empty() {
		c.retxActive = false
		return
	}
	c.retxActive = true
	c.retxStart = c.now()
}

// maybeRetx is called from TimerTick; it fires an RTO-driven retransmission
// if the timer has expired.
func (c *Connection) maybeRetx() {
	if !c.retxActive || c.retx.empty() {
		return
	}
	now := c.now()
	if now < c.retxStart+c.rtt.rto {
		return
	}
	n := retxOnRTOCount
	if n > c.retx.len() {
		n = c.retx.len()
	}
	smss := c.effectiveSMSS()
	triggeredBackoff := false
	for i := 0; i < n; i++ {
		e := &c.retx.entries[i]
		if !e.retransmitted && !triggeredBackoff {
			c.cc.onRTO(c.snd.flight(), smss)
			if c.state == StateSynSent {
				c.rtt.clampSynSent()
			}
			c.rtt.backoff()
			triggeredBackoff = true
		}
		c.retransmitEntry(e, now)
	}
	c.resetRetxTimer()
}

// retransmitFastRetransmit retransmits the single segment covering seq,
// used for NewReno fast retransmit and partial-ACK retransmission (RFC
// 6582). It does not touch RTO backoff or exit fast recovery.
func (c *Connection) retransmitFastRetransmit(seq Value) {
	i := c.retx.findCovering(seq)
	if i < 0 {
		return
	}
	c.retransmitEntry(&c.retx.entries[i], c.now())
	c.resetRetxTimer()
}

func (c *Connection) retransmitEntry(e *retxEntry, now float64) {
	seg := e.seg
	seg.ACK = c.rcv.NXT
	seg.WND = c.advertisedWindowUnscaled()
	c.sendRaw(seg, e.payload, nil)
	e.retransmitted = true
	e.retxTime = now
}

// flushPendingAck sends a bare ACK if one is owed. ignoreDelay=true is used
// from timer_tick, so a delayable ACK is never held past one tick
// (delayed-ACK flushing).
func (c *Connection) flushPendingAck(ignoreDelay bool) {
	if !c.ack.owed() {
		return
	}
	if !ignoreDelay && !c.ack.mustSendNow() {
		return
	}
	c.sendRaw(Segment{SEQ: c.snd.NXT, WND: c.advertisedWindowUnscaled(), Flags: FlagACK}, nil, nil)
}

// flushPendingFIN emits the deferred FIN once tx_buf has drained
// (deferred-FIN flushing).
func (c *Connection) flushPendingFIN() {
	seqno, ok := c.fin.flush(c.snd.NXT, c.txBuf.Buffered() == 0)
	if !ok {
		return
	}
	seg := Segment{SEQ: seqno, WND: c.advertisedWindowUnscaled(), Flags: FlagFIN}
	c.sendRaw(seg, nil, nil)
	c.retx.push(seg, nil, c.now())
	c.snd.NXT = c.snd.NXT + 1
	c.armRetxTimer()
	// The peer's own FIN may have already moved us to CLOSE_WAIT while ours
	// sat waiting on tx_buf to drain, so the next state is decided now, from
	// whichever of the two closing states we're actually in.
	switch c.state {
	case StateEstablished:
		c.state = StateFinWait1
	case StateCloseWait:
		c.state = StateLastAck
	}
}

// maintainZWP starts, stops, or fires the zero-window-probe timer, per
// zero-window probing.
func (c *Connection) maintainZWP() {
	if c.snd.WND == 0 && c.txBuf.Buffered() > 0 {
		c.zwp.start(c.now(), c.rtt.rto)
	} else {
		c.zwp.stop()
		return
	}
	if c.zwp.due(c.now(), c.rtt.rto) {
		probeSeq := c.snd.NXT - 1
		seg := Segment{SEQ: probeSeq, DATALEN: 1, WND: c.advertisedWindowUnscaled()}
		var b [1]byte
		c.txBuf.Peek(b[:], 0)
		c.sendRaw(seg, b[:], nil)
	}
}

// TimerTick is the engine's periodic entry point. In TIME-WAIT it only
// checks for expiry; otherwise it runs RTO retransmission, sending, a forced
// pending-ACK flush, the deferred FIN and zero-window probing, in that order.
func (c *Connection) TimerTick() {
	if c.state == StateClosed {
		return
	}
	if c.state == StateTimeWait {
		if c.tw.expired(c.now()) {
			c.deleteTCB()
		}
		return
	}
	c.maybeRetx()
	c.maybeSend()
	c.flushPendingAck(true)
	c.flushPendingFIN()
	c.maintainZWP()
	c.unblock()
}
