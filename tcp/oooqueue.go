package tcp

// oooEntry is one out-of-order segment held until rcv.nxt catches up to it.
type oooEntry struct {
	seg     Segment
	payload []byte
}

// oooQueue holds future segments (seg.SEQ >m rcv.nxt) keyed by sequence
// number, in ascending order, so the head is always the earliest pending gap
// filler.
type oooQueue struct {
	entries []oooEntry
}

func (q *oooQueue) empty() bool { return len(q.entries) == 0 }

// insert inserts seg in sequence order, dropping it if an entry with the
// same starting sequence is already queued (a duplicate retransmission of an
// already-queued out-of-order segment).
func (q *oooQueue) insert(seg Segment, payload []byte) {
	i := 0
	for i < len(q.entries) {
		if q.entries[i].seg.SEQ == seg.SEQ {
			return // already queued
		}
		if seg.SEQ.LessThan(q.entries[i].seg.SEQ) {
			break
		}
		i++
	}
	q.entries = append(q.entries, oooEntry{})
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = oooEntry{seg: seg, payload: payload}
}

// popReady removes and returns the head entry if its SEQ is now at or before
// rcv.nxt (it has become in-order or is subsumed), or ok=false otherwise.
func (q *oooQueue) popReady(rcvNxt Value) (e oooEntry, ok bool) {
	if len(q.entries) == 0 {
		return oooEntry{}, false
	}
	head := q.entries[0]
	if !head.seg.SEQ.LessThanEq(rcvNxt) {
		return oooEntry{}, false
	}
	q.entries = q.entries[1:]
	return head, true
}

func (q *oooQueue) clear() {
	q.entries = q.entries[:0]
}
