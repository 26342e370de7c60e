package tcp

import (
	"encoding/binary"
	"math"

	"github.com/soypat/lneto"
)

const sizeHeaderTCP = 20

// Frame is a thin accessor over a raw TCP header-plus-options-plus-payload
// buffer. It never copies; callers own buf's lifetime.
type Frame struct {
	buf []byte
}

// NewFrame wraps buf as a Frame. buf must be at least 20 bytes (the fixed
// TCP header); use Frame.Options/Frame.Payload only after confirming
// HeaderLength() fits within buf.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeaderTCP {
		return Frame{}, lneto.ErrShortBuffer
	}
	return Frame{buf: buf}, nil
}

func (f Frame) RawData() []byte { return f.buf }

func (f Frame) SourcePort() uint16      { return binary.BigEndian.Uint16(f.buf[0:2]) }
func (f Frame) SetSourcePort(p uint16)  { binary.BigEndian.PutUint16(f.buf[0:2], p) }
func (f Frame) DestinationPort() uint16 { return binary.BigEndian.Uint16(f.buf[2:4]) }
func (f Frame) SetDestinationPort(p uint16) {
	binary.BigEndian.PutUint16(f.buf[2:4], p)
}

func (f Frame) Seq() Value     { return Value(binary.BigEndian.Uint32(f.buf[4:8])) }
func (f Frame) SetSeq(v Value) { binary.BigEndian.PutUint32(f.buf[4:8], uint32(v)) }
func (f Frame) Ack() Value     { return Value(binary.BigEndian.Uint32(f.buf[8:12])) }
func (f Frame) SetAck(v Value) { binary.BigEndian.PutUint32(f.buf[8:12], uint32(v)) }

// OffsetAndFlags returns the data-offset (in 32-bit words) and control flags.
func (f Frame) OffsetAndFlags() (offset uint8, flags Flags) {
	v := binary.BigEndian.Uint16(f.buf[12:14])
	return uint8(v >> 12), Flags(v).Mask()
}

func (f Frame) SetOffsetAndFlags(offset uint8, flags Flags) {
	v := uint16(offset)<<12 | uint16(flags.Mask())
	binary.BigEndian.PutUint16(f.buf[12:14], v)
}

// HeaderLength returns the header length in bytes, including options.
func (f Frame) HeaderLength() int {
	offset, _ := f.OffsetAndFlags()
	return 4 * int(offset)
}

func (f Frame) WindowSize() uint16     { return binary.BigEndian.Uint16(f.buf[14:16]) }
func (f Frame) SetWindowSize(v uint16) { binary.BigEndian.PutUint16(f.buf[14:16], v) }
func (f Frame) CRC() uint16            { return binary.BigEndian.Uint16(f.buf[16:18]) }
func (f Frame) SetCRC(v uint16)        { binary.BigEndian.PutUint16(f.buf[16:18], v) }
func (f Frame) UrgentPtr() uint16      { return binary.BigEndian.Uint16(f.buf[18:20]) }
func (f Frame) SetUrgentPtr(v uint16)  { binary.BigEndian.PutUint16(f.buf[18:20], v) }

// Options returns the variable-length option bytes between the fixed header
// and the payload.
func (f Frame) Options() []byte { return f.buf[sizeHeaderTCP:f.HeaderLength()] }

// Payload returns the segment's data bytes, following header and options.
func (f Frame) Payload() []byte { return f.buf[f.HeaderLength():] }

// ClearHeader zeros the fixed 20-byte header.
func (f Frame) ClearHeader() {
	for i := range f.buf[:sizeHeaderTCP] {
		f.buf[i] = 0
	}
}

// Segment extracts the sequence-space view of the frame given the payload
// length (callers already know this from the containing IP datagram).
func (f Frame) Segment(payloadLen int) Segment {
	if payloadLen > math.MaxInt32 {
		panic("tcp: payload too large")
	}
	_, flags := f.OffsetAndFlags()
	return Segment{
		SEQ:     f.Seq(),
		ACK:     f.Ack(),
		WND:     Size(f.WindowSize()),
		DATALEN: Size(payloadLen),
		Flags:   flags,
	}
}

// SetSegment writes seg's sequence-space fields into the frame, along with
// the given header offset (in 32-bit words, minimum 5).
func (f Frame) SetSegment(seg Segment, offset uint8) {
	if offset >= 1<<4 {
		panic("tcp: header offset too large")
	} else if seg.WND > math.MaxUint16 {
		panic("tcp: window overflow")
	}
	f.SetSeq(seg.SEQ)
	f.SetAck(seg.ACK)
	f.SetOffsetAndFlags(offset, seg.Flags)
	f.SetWindowSize(uint16(seg.WND))
}

// PseudoHeaderChecksum returns the CRC791 (RFC 793 §3.1) checksum of the TCP
// segment given the IPv4 pseudo-header fields. The frame's own checksum
// field must be zero while this is computed.
func PseudoHeaderChecksum(srcIP, dstIP [4]byte, tcpLength uint16, segment []byte) uint16 {
	var crc lneto.CRC791
	crc.WriteEven(srcIP[:])
	crc.WriteEven(dstIP[:])
	crc.AddUint16(uint16(lneto.IPProtoTCP))
	crc.AddUint16(tcpLength)
	return crc.PayloadSum16(segment)
}
