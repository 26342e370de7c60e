package tcp

import "net/netip"

// Bind assigns the connection's local address, auto-selecting an ephemeral
// port when local.Port() is 0 (RFC 9293 §3.9's OPEN/bind semantics).
func (c *Connection) Bind(local netip.AddrPort) error {
	if c.state != StateInitial {
		return ErrBadState
	}
	if local.Port() == 0 {
		port, err := c.stack.AllocatePort(local.Addr())
		if err != nil {
			return err
		}
		local = netip.AddrPortFrom(local.Addr(), port)
	} else if c.stack.conns[local] != nil || c.stack.listeners[local] != nil {
		return ErrAddrInUse
	}
	c.local = local
	c.stack.register(c)
	return nil
}

// Connect begins an active open against peer: sends SYN and transitions to
// SYN_SENT (the INITIAL-to-SYN_SENT active-open transition).
func (c *Connection) Connect(peer netip.AddrPort) error {
	if c.state != StateInitial || !c.local.IsValid() {
		return ErrBadState
	}
	c.stack.unregister(c)
	c.peer = peer
	c.snd.ISS = Value(uint32(c.stack.nextRand()))
	c.snd.UNA = c.snd.ISS
	c.snd.NXT = c.snd.ISS
	c.rcv.WND = Size(c.rxBuf.Size())
	c.useTSOption = c.cfg.UseTimestamps
	c.initWindowScale()

	c.state = StateSynSent
	c.stack.register(c)

	seg := Segment{SEQ: c.snd.ISS, WND: c.advertisedWindowUnscaled(), Flags: FlagSYN}
	c.sendRaw(seg, nil, c.synOptions())
	c.snd.NXT = c.snd.ISS + 1
	c.retx.push(seg, nil, c.now())
	c.armRetxTimer()
	return nil
}

// beginPassiveOpen initializes a freshly spawned child connection from an
// inbound SYN: records IRS, picks our own ISS, and sends SYN+ACK, entering
// SYN_RECEIVED (the LISTEN-to-SYN_RECEIVED transition on an inbound SYN).
func (c *Connection) beginPassiveOpen(seg Segment, opts parsedOptions) {
	c.rcv.IRS = seg.SEQ
	c.rcv.NXT = seg.SEQ + 1
	c.rcv.WND = Size(c.rxBuf.Size())

	c.snd.ISS = Value(uint32(c.stack.nextRand()))
	c.snd.UNA = c.snd.ISS
	c.snd.NXT = c.snd.ISS
	c.snd.WND = seg.WND // literal, unscaled, since this is the peer's SYN

	if c.cfg.UseWindowScale && opts.hasWndScale {
		c.sndWndShift = opts.wndScale
		c.initWindowScale()
	}
	if c.cfg.UseTimestamps && opts.hasTimestamp {
		c.useTSOption = true
		c.tsRecent = opts.tsval
		c.tsLastAck = seg.SEQ
	}

	c.state = StateSynRcvd
	out := Segment{SEQ: c.snd.ISS, ACK: c.rcv.NXT, WND: c.advertisedWindowUnscaled(), Flags: synack}
	c.sendRaw(out, nil, c.synOptions())
	c.snd.NXT = c.snd.ISS + 1
	c.retx.push(out, nil, c.now())
	c.armRetxTimer()
}

func (c *Connection) initWindowScale() {
	if !c.cfg.UseWindowScale {
		return
	}
	shift := uint8(0)
	max := c.rxBuf.Size()
	for (1<<shift)*0xFFFF < max && shift < maxWindowShift {
		shift++
	}
	c.rcvWndShift = shift
}

func (c *Connection) synOptions() []byte {
	var b []byte
	if c.cfg.UseWindowScale {
		b = AppendWindowScale(b, c.rcvWndShift)
	}
	if c.cfg.UseTimestamps {
		b = AppendTimestamps(b, c.outgoingTSVal(), 0)
	}
	return b
}

// advertisedWindowUnscaled returns rcv.wnd before any right-shift; callers
// responsible for wire encoding apply rcv_wnd_shift except on SYN segments,
// which always carry the literal window (RFC 7323 §2.2).
func (c *Connection) advertisedWindowUnscaled() Size {
	free := Size(c.rxBuf.Free())
	if free > 0xFFFF {
		free = 0xFFFF
	}
	c.rcv.WND = free
	return free
}

func (c *Connection) outgoingTSVal() uint32 {
	return uint32(c.now()*1000) + c.cfg.TSHash
}

// Shutdown implements the rd/wr/both half-close calls: wr schedules a FIN
// once tx_buf drains, rd discards the receive buffer and marks it closed for
// reading.
func (c *Connection) Shutdown(rd, wr bool) error {
	if c.state.IsClosed() || c.state == StateInitial {
		return ErrBadState
	}
	if rd {
		c.shutRD = true
		c.rxBuf.Reset()
	}
	if wr && !c.fin.pending && !c.fin.sent {
		c.scheduleFIN()
	}
	return nil
}

// Close implements the per-state close() table of RFC 9293 §3.10.4.
func (c *Connection) Close() error {
	switch c.state {
	case StateClosed, StateInitial:
		return ErrBadState
	case StateSynSent:
		c.deleteTCB()
		return nil
	case StateEstablished, StateCloseWait:
		c.scheduleFIN()
	case StateListen:
		delete(c.stack.listeners, c.local)
		c.deleteTCB()
	default:
		return ErrBadState // FIN_WAIT/CLOSING/LAST_ACK/TIME_WAIT already closing
	}
	return nil
}

func (c *Connection) scheduleFIN() {
	c.fin.setPending()
	c.maybeSend()
	c.flushPendingFIN()
}

// deleteTCB removes the connection from the stack registry and (if spawned
// by a listener) from the syn/accept queues, per RFC 9293's "delete TCB"
// actions.
func (c *Connection) deleteTCB() {
	c.state = StateClosed
	c.stack.unregister(c)
	if c.parentListener != nil {
		c.parentListener.abandon(c)
	}
	c.retx.clear()
	c.ooo.clear()
	c.unblock()
}
