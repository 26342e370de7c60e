package tcp

// sendSpace tracks the send sequence-number space (RFC 9293 §3.3.1): ISS,
// UNA, NXT, WND, and the window-update bookkeeping variables WL1/WL2.
type sendSpace struct {
	ISS Value // initial send sequence number
	UNA Value // oldest unacknowledged sequence number
	NXT Value // next sequence number to be sent
	WND Size  // peer's advertised window, already left-shifted by snd_wnd_shift
	WL1 Value // seg.seq of the segment used for the last window update
	WL2 Value // seg.ack of the segment used for the last window update
}

// flight returns the number of unacknowledged octets outstanding.
func (s *sendSpace) flight() Size {
	return Size(s.NXT - s.UNA)
}

// canUpdateWindow reports whether seg is allowed to update snd.WND per RFC
// 9293 §3.10.7.2: either its SEQ strictly advances WL1, or it is equal and
// its ACK does not retreat behind WL2.
func (s *sendSpace) canUpdateWindow(seg Segment) bool {
	return s.WL1.LessThan(seg.SEQ) || (s.WL1 == seg.SEQ && s.WL2.LessThanEq(seg.ACK))
}

// updateWindow applies seg's window update, recording WL1/WL2.
func (s *sendSpace) updateWindow(seg Segment) {
	s.WND = seg.WND
	s.WL1 = seg.SEQ
	s.WL2 = seg.ACK
}
