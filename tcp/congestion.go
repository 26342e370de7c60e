package tcp

// congestionController implements RFC 5681 slow start / congestion avoidance
// with RFC 6582 NewReno fast retransmit / fast recovery and RFC 3042 limited
// transmit.
type congestionController struct {
	cwnd                Size
	cwndInitialized      bool
	ssthresh             Size
	inFastRecovery       bool
	recover              Value
	dupAckCount          int
	limitedTransmitSent  Size
	partialAckCount      int
	caAckedBytes         Size
}

// initIfNeeded lazily sets cwnd to the RFC 5681 initial window the first
// time it is needed, since SMSS is not known until the handshake completes.
func (c *congestionController) initIfNeeded(smss Size) {
	if !c.cwndInitialized {
		c.cwnd = initialWindow(smss)
		c.cwndInitialized = true
	}
	if c.ssthresh == 0 {
		c.ssthresh = ^Size(0) >> 1 // effectively unbounded until a loss is observed
	}
}

// initialWindow implements RFC 5681 §3.1's IW formula.
func initialWindow(smss Size) Size {
	switch {
	case smss > 2190:
		return 2 * smss
	case smss > 1095:
		return 3 * smss
	default:
		return 4 * smss
	}
}

// lossWindow is RFC 5681's LW: one SMSS.
func lossWindow(smss Size) Size { return smss }

// restartWindow is RFC 5681 §4.1's RW, applied after an idle period.
func restartWindow(smss Size, cwnd Size) Size {
	iw := initialWindow(smss)
	if cwnd < iw {
		return cwnd
	}
	return iw
}

// effectiveWindow returns cwnd adjusted for RFC 3042 limited transmit: while
// exactly 1 or 2 duplicate ACKs have arrived, the effective window is
// temporarily inflated by that many SMSS, less what limited transmit has
// already consumed.
func (c *congestionController) effectiveWindow(smss Size) Size {
	if c.dupAckCount == 1 || c.dupAckCount == 2 {
		bonus := Size(c.dupAckCount)*smss - c.limitedTransmitSent
		return c.cwnd + bonus
	}
	return c.cwnd
}

// onFreshAckBytes applies the non-FR congestion-avoidance/slow-start update
// for n newly-acknowledged bytes (RFC 5681 §3.1).
func (c *congestionController) onFreshAckBytes(n, smss Size) {
	if c.cwnd < c.ssthresh {
		inc := n
		if inc > smss {
			inc = smss
		}
		c.cwnd += inc
		return
	}
	c.caAckedBytes += n
	if c.caAckedBytes >= c.cwnd {
		c.cwnd += smss
		c.caAckedBytes = 0
	}
}

// enterFastRecovery implements RFC 6582 step 1: triggered by the 3rd
// duplicate ACK, provided the NewReno wraparound guard (recover) allows it.
func (c *congestionController) enterFastRecovery(una, sndNxt Value, flight, smss Size) {
	c.inFastRecovery = true
	c.recover = sndNxt - 1
	half := (flight - c.limitedTransmitSent) / 2
	floor := 2 * smss
	if half < floor {
		half = floor
	}
	c.ssthresh = half
	c.cwnd = c.ssthresh + 3*smss
}

// exitFastRecoveryFull implements the full-ACK exit from fast recovery (RFC
// 6582 step 4): cwnd deflates to min(ssthresh, max(flight, SMSS)+SMSS).
func (c *congestionController) exitFastRecoveryFull(flight, smss Size) {
	target := flight
	if target < smss {
		target = smss
	}
	target += smss
	if c.ssthresh < target {
		c.cwnd = c.ssthresh
	} else {
		c.cwnd = target
	}
	c.inFastRecovery = false
	c.dupAckCount = 0
	c.limitedTransmitSent = 0
	c.partialAckCount = 0
}

// partialAckDeflate implements RFC 6582 step 5: a partial ACK during fast
// recovery deflates cwnd by the freshly acked bytes, then reinflates by one
// SMSS if at least a full segment was acked, to cover the retransmission
// about to be sent.
func (c *congestionController) partialAckDeflate(acked, smss Size) {
	c.cwnd -= acked
	if acked >= smss {
		c.cwnd += smss
	}
	c.partialAckCount++
}

// onRTO implements the RTO-driven congestion response of RFC 5681 §4.1: halve
// the window into ssthresh (floored at 2 SMSS) and drop cwnd to the loss
// window.
func (c *congestionController) onRTO(flight, smss Size) {
	half := flight / 2
	floor := 2 * smss
	if half < floor {
		half = floor
	}
	c.ssthresh = half
	c.cwnd = lossWindow(smss)
	c.inFastRecovery = false
	c.dupAckCount = 0
	c.limitedTransmitSent = 0
	c.partialAckCount = 0
}
