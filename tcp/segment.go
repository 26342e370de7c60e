package tcp

import (
	"math/bits"

	"github.com/netsys-edu/tcpstack/seqnum"
)

// Value and Size are the sequence-space types used throughout this package.
// They are aliases of the seqnum package's types so call sites can write
// Value/Size directly, matching how the rest of the subsystem files read.
type Value = seqnum.Value
type Size = seqnum.Size

// Segment is the sequence-space view of an incoming or outgoing TCP segment:
// the fields that drive the state machine, independent of wire encoding.
type Segment struct {
	SEQ     Value // sequence number of the first octet; if SYN set, the ISN (first data octet is ISN+1).
	ACK     Value // acknowledgment number, meaningful when Flags.HasAny(FlagACK).
	DATALEN Size  // payload length in octets, not counting SYN/FIN.
	WND     Size  // advertised window.
	Flags   Flags
}

// LEN returns the length of the segment in sequence-space octets, including
// the SYN and FIN flags (RFC 9293 §3.4).
func (seg *Segment) LEN() Size {
	add := Size(seg.Flags>>0) & 1 // FIN
	add += Size(seg.Flags>>1) & 1 // SYN
	return seg.DATALEN + add
}

// Last returns the sequence number of the segment's final octet.
func (seg *Segment) Last() Value {
	l := seg.LEN()
	if l == 0 {
		return seg.SEQ
	}
	return seqnum.Add(seg.SEQ, l) - 1
}

func (seg Segment) isDupAckCandidate() bool {
	return seg.Flags.Mask() == FlagACK && seg.DATALEN == 0
}

// Flags is the TCP control-bit bitmask (SYN, FIN, ACK, ...).
type Flags uint16

const (
	FlagFIN Flags = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
	FlagECE
	FlagCWR
	FlagNS
)

const flagMask = 0x01ff

const (
	synack = FlagSYN | FlagACK
	finack = FlagFIN | FlagACK
)

// HasAll reports whether every bit in mask is set in flags.
func (flags Flags) HasAll(mask Flags) bool { return flags&mask == mask }

// HasAny reports whether at least one bit in mask is set in flags.
func (flags Flags) HasAny(mask Flags) bool { return flags&mask != 0 }

// Mask returns flags with reserved, non-control bits cleared.
func (flags Flags) Mask() Flags { return flags & flagMask }

func (flags Flags) String() string {
	switch flags.Mask() {
	case 0:
		return "[]"
	case synack:
		return "[SYN,ACK]"
	case finack:
		return "[FIN,ACK]"
	case FlagACK:
		return "[ACK]"
	case FlagSYN:
		return "[SYN]"
	case FlagFIN:
		return "[FIN]"
	case FlagRST:
		return "[RST]"
	}
	buf := make([]byte, 0, 2+3*bits.OnesCount16(uint16(flags.Mask())))
	buf = append(buf, '[')
	buf = flags.AppendFormat(buf)
	buf = append(buf, ']')
	return string(buf)
}

// AppendFormat appends a human readable, comma separated flag list (without
// surrounding brackets) to b and returns the extended buffer.
func (flags Flags) AppendFormat(b []byte) []byte {
	flags = flags.Mask()
	if flags == 0 {
		return b
	}
	const flaglen = 3
	const names = "FINSYNRSTPSHACKURGECECWRNS "
	first := true
	for flags != 0 {
		i := bits.TrailingZeros16(uint16(flags))
		if !first {
			b = append(b, ',')
		}
		first = false
		b = append(b, names[i*flaglen:i*flaglen+flaglen]...)
		flags &= ^(1 << i)
	}
	return b
}
