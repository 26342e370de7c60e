package tcp

// retxEntry is one outstanding, potentially-retransmittable segment: its
// sequence-space description, its own copy of the payload (maybeSend
// discards the bytes from tx_buf as soon as they are sent), and the send
// timestamps used for RTT sampling and RTO scheduling.
type retxEntry struct {
	seg           Segment
	payload       []byte
	txTime        float64 // Clock seconds when first sent
	retxTime      float64 // time of most recent retransmission, 0 if never retransmitted
	retransmitted bool
}

// end returns the sequence number one past the entry's last octet.
func (e *retxEntry) end() Value {
	return e.seg.SEQ.UpdateForward(e.seg.LEN())
}

// retxQueue is the ordered list of in-flight segments sorted by ascending
// sequence number, used both to drive retransmission and to reconstruct
// snd.nxt-snd.una as the sum of queued segment lengths.
type retxQueue struct {
	entries []retxEntry
}

func (q *retxQueue) len() int { return len(q.entries) }

func (q *retxQueue) empty() bool { return len(q.entries) == 0 }

// totalLen returns the sum, in sequence-space octets, of every queued entry.
func (q *retxQueue) totalLen() Size {
	var total Size
	for i := range q.entries {
		total += q.entries[i].seg.LEN()
	}
	return total
}

// push appends a newly transmitted segment to the tail. Callers must push in
// strictly increasing sequence order, matching the order maybe_send emits.
func (q *retxQueue) push(seg Segment, payload []byte, now float64) {
	q.entries = append(q.entries, retxEntry{seg: seg, payload: payload, txTime: now})
}

// front returns a pointer to the head entry, or nil if the queue is empty.
func (q *retxQueue) front() *retxEntry {
	if len(q.entries) == 0 {
		return nil
	}
	return &q.entries[0]
}

// removeAcked pops every entry fully covered by the new una (i.e. entry.end()
// <=m una). It returns nothing. An entry that una covers only in part (the
// peer accepted just a prefix of it) stays in the queue whole, with its
// sequence range and payload unchanged.
func (q *retxQueue) removeAcked(una Value) {
	i := 0
	for i < len(q.entries) && q.entries[i].end().LessThanEq(una) {
		i++
	}
	if i > 0 {
		q.entries = q.entries[i:]
	}
}

// findCovering returns the index of the entry whose range contains seq, or
// -1 if none does. Used by fast retransmit to find the segment at snd.una
// and by the classic RTT heuristic to find the segment an ACK falls within.
func (q *retxQueue) findCovering(seq Value) int {
	for i := range q.entries {
		e := &q.entries[i]
		if seq.InRange(e.seg.SEQ, e.end()-1) || (e.seg.LEN() == 0 && seq == e.seg.SEQ) {
			return i
		}
	}
	return -1
}

// clear empties the queue, used when the connection is abandoned.
func (q *retxQueue) clear() {
	q.entries = q.entries[:0]
}
