package tcp

import (
	"encoding/binary"
	"fmt"
)

// OptionKind identifies a TCP option's kind octet (RFC 9293 §3.1, IANA TCP
// option registry). Only the kinds this engine produces or consumes are
// named; everything else is skipped over by ForEachOption without error.
type OptionKind uint8

const (
	OptEnd            OptionKind = 0 // end of option list
	OptNop            OptionKind = 1 // no-operation / padding
	OptMaxSegmentSize OptionKind = 2 // maximum segment size
	OptWindowScale    OptionKind = 3 // window scale (RFC 7323 §2)
	OptSACKPermitted  OptionKind = 4
	OptSACK           OptionKind = 5
	OptTimestamps     OptionKind = 8 // timestamps (RFC 7323 §3)
)

func (k OptionKind) String() string {
	switch k {
	case OptEnd:
		return "End"
	case OptNop:
		return "Nop"
	case OptMaxSegmentSize:
		return "MSS"
	case OptWindowScale:
		return "WindowScale"
	case OptSACKPermitted:
		return "SACKPermitted"
	case OptSACK:
		return "SACK"
	case OptTimestamps:
		return "Timestamps"
	}
	return "Unknown"
}

// maxWindowShift is the largest shift count WSOPT may advertise (RFC 7323 §2.2).
const maxWindowShift = 14

// OptionParser walks the TLV-encoded option bytes following a TCP header.
type OptionParser struct {
	// SkipSizeValidation disables the fixed-length checks for known option kinds.
	SkipSizeValidation bool
}

// ForEachOption invokes fn once per option found in opts, in wire order. It
// stops at OptEnd or the end of the buffer. A malformed option (truncated
// length octet, length exceeding the remaining buffer, or a known option
// whose length is wrong) aborts parsing with an error.
func (op *OptionParser) ForEachOption(opts []byte, fn func(OptionKind, []byte) error) error {
	off := 0
	for off < len(opts) && opts[off] != byte(OptEnd) {
		kind := OptionKind(opts[off])
		off++
		if kind == OptNop {
			continue
		}
		if off >= len(opts) {
			return errShortOptions
		}
		size := int(opts[off]) - 2 // length octet counts itself and the kind octet
		off++
		if size < 0 || len(opts[off:]) < size {
			return fmt.Errorf("tcp: option %s length exceeds remaining buffer", kind)
		}
		if !op.SkipSizeValidation {
			want := -1
			switch kind {
			case OptTimestamps:
				want = 8
			case OptMaxSegmentSize:
				want = 2
			case OptWindowScale:
				want = 1
			case OptSACKPermitted:
				want = 0
			}
			if want != -1 && size != want {
				return fmt.Errorf("tcp: bad option %s size want %d got %d", kind, want, size)
			}
		}
		if err := fn(kind, opts[off:off+size]); err != nil {
			return err
		}
		off += size
	}
	return nil
}

// AppendWindowScale appends a WSOPT (kind 3, length 3) with the given shift.
func AppendWindowScale(b []byte, shift uint8) []byte {
	return append(b, byte(OptWindowScale), 3, shift)
}

// AppendTimestamps appends a TSOPT (kind 8, length 10) with the given values.
func AppendTimestamps(b []byte, tsval, tsecr uint32) []byte {
	b = append(b, byte(OptTimestamps), 10)
	b = binary.BigEndian.AppendUint32(b, tsval)
	b = binary.BigEndian.AppendUint32(b, tsecr)
	return b
}

// AppendMSS appends an MSS option (kind 2, length 4).
func AppendMSS(b []byte, mss uint16) []byte {
	b = append(b, byte(OptMaxSegmentSize), 4)
	return binary.BigEndian.AppendUint16(b, mss)
}

// parsedOptions is the subset of a SYN/SYN-ACK's options this engine acts on.
type parsedOptions struct {
	hasMSS       bool
	mss          uint16
	hasWndScale  bool
	wndScale     uint8
	hasTimestamp bool
	tsval        uint32
	tsecr        uint32
}

func parseOptions(opts []byte) (parsedOptions, error) {
	var p parsedOptions
	var parser OptionParser
	err := parser.ForEachOption(opts, func(kind OptionKind, data []byte) error {
		switch kind {
		case OptMaxSegmentSize:
			p.hasMSS = true
			p.mss = binary.BigEndian.Uint16(data)
		case OptWindowScale:
			p.hasWndScale = true
			shift := data[0]
			if shift > maxWindowShift {
				shift = maxWindowShift
			}
			p.wndScale = shift
		case OptTimestamps:
			p.hasTimestamp = true
			p.tsval = binary.BigEndian.Uint32(data[0:4])
			p.tsecr = binary.BigEndian.Uint32(data[4:8])
		}
		return nil
	})
	return p, err
}
