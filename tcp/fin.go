package tcp

// finController tracks the deferred-FIN handshake: a FIN
// cannot be placed on the wire until every byte queued ahead of it has been
// segmented out of tx_buf. It deliberately does not pin down which state
// the connection moves to once the FIN is sent: a peer FIN can arrive
// (Established -> CloseWait) while ours is still waiting on tx_buf to
// drain, so the right next state can only be decided at flush time, from
// whatever state the connection is actually in then.
type finController struct {
	pending bool
	sent    bool
	seqno   Value
}

// setPending records intent to close, deferring transmission until tx_buf
// drains.
func (f *finController) setPending() {
	f.pending = true
}

// flush emits the FIN if it is pending, not yet sent, and tx_buf is empty. It
// returns ok=true if a FIN was placed, in which case the caller is
// responsible for choosing the next state from its current one.
func (f *finController) flush(sndNxt Value, txBufEmpty bool) (seqno Value, ok bool) {
	if !f.pending || f.sent || !txBufEmpty {
		return 0, false
	}
	f.seqno = sndNxt
	f.sent = true
	return f.seqno, true
}

// acksOurFin reports whether ack a acknowledges our previously sent FIN
// (fin_sent ∧ a >m seqno): seqno is the FIN's own sequence number, so only
// an ACK beyond it covers the FIN.
func (f *finController) acksOurFin(a Value) bool {
	return f.sent && f.seqno.LessThan(a)
}
