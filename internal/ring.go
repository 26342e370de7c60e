// Package internal holds small helpers shared across the tcp package that
// have no business being part of the public API surface: a byte ring buffer
// and a trace-level logging helper.
package internal

import (
	"io"
)

// Ring is a fixed-capacity byte ring buffer used for tx_buf/rx_buf. Data
// written with Write can be read back, in order, with Read/Peek. The zero
// value is unusable; set Buf to a slice of the desired capacity first.
type Ring struct {
	Buf []byte
	off int // start of readable data
	end int // one past end of readable data; end==off means full if full==true
	full bool
}

// Size returns the ring's capacity in bytes.
func (r *Ring) Size() int { return len(r.Buf) }

// Buffered returns the number of bytes currently readable.
func (r *Ring) Buffered() int {
	if r.full {
		return len(r.Buf)
	}
	if r.end >= r.off {
		return r.end - r.off
	}
	return len(r.Buf) - r.off + r.end
}

// Free returns the number of bytes that can still be written.
func (r *Ring) Free() int { return len(r.Buf) - r.Buffered() }

// Reset discards all buffered data.
func (r *Ring) Reset() {
	r.off, r.end, r.full = 0, 0, false
}

// Write appends up to len(b) bytes, truncating to the available free space.
// It never returns an error; callers that need to know how much was accepted
// should compare the returned count against len(b).
func (r *Ring) Write(b []byte) (n int) {
	free := r.Free()
	if len(b) > free {
		b = b[:free]
	}
	if len(b) == 0 {
		return 0
	}
	n = copy(r.Buf[r.end:], b)
	if n < len(b) {
		n2 := copy(r.Buf, b[n:])
		n += n2
	}
	r.end = (r.end + n) % len(r.Buf)
	if n > 0 {
		r.full = r.end == r.off
	}
	return n
}

// Peek copies up to len(b) bytes starting at the given offset from the
// readable region into b without advancing the read pointer.
func (r *Ring) Peek(b []byte, offset int) (n int) {
	buffered := r.Buffered()
	if offset >= buffered {
		return 0
	}
	start := (r.off + offset) % len(r.Buf)
	avail := buffered - offset
	if len(b) > avail {
		b = b[:avail]
	}
	n = copy(b, r.Buf[start:])
	if n < len(b) {
		n += copy(b[n:], r.Buf[:start])
	}
	return n
}

// Read copies up to len(b) bytes into b and advances the read pointer past
// them. It returns io.EOF when the ring has no buffered data.
func (r *Ring) Read(b []byte) (int, error) {
	if r.Buffered() == 0 {
		return 0, io.EOF
	}
	n := r.Peek(b, 0)
	r.Discard(n)
	return n, nil
}

// Discard advances the read pointer by n bytes without copying them out. It
// panics if n exceeds the buffered byte count, mirroring the precondition
// every call site in this module already establishes before calling it.
func (r *Ring) Discard(n int) {
	if n == 0 {
		return
	}
	buffered := r.Buffered()
	if n > buffered {
		panic("internal: ring discard exceeds buffered length")
	}
	if n == buffered {
		r.Reset()
		return
	}
	r.off = (r.off + n) % len(r.Buf)
	r.full = false
}
