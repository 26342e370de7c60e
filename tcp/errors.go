package tcp

import "errors"

// Protocol-anomaly sentinels: conditions the engine recovers from locally
// and never surfaces to the application (see the error taxonomy below).
var (
	errDropSegment    = errors.New("tcp: drop segment")
	errWindowTooLarge = errors.New("tcp: invalid window size > 2**16")
	errShortOptions   = errors.New("tcp: short TCP options")
)

// API-misuse sentinels, returned synchronously from the socket-like API.
var (
	ErrBadState      = errors.New("tcp: operation illegal in current state")
	ErrAddrInUse     = errors.New("tcp: address already in use")
	ErrNotBound      = errors.New("tcp: socket not bound")
	ErrWouldBlock    = errors.New("tcp: operation would block")
	ErrNoRoute       = errors.New("tcp: no route to peer")
	ErrShutForReading = errors.New("tcp: socket shut down for reading")
	ErrConnClosed    = errors.New("tcp: connection closed")
	ErrNoPorts       = errors.New("tcp: no ephemeral ports available")
)

// RejectError represents an error that arises while admitting a segment into
// the send/receive sequence-space logic: the segment is well-formed but
// cannot be processed given the connection's current window state.
type RejectError struct {
	err string
}

func (e *RejectError) Error() string { return e.err }

func newRejectErr(reason string) *RejectError {
	return &RejectError{err: "tcp: reject segment: " + reason}
}

var (
	errSeqNotInWindow  = newRejectErr("seq not in rcv.wnd")
	errZeroWindow      = newRejectErr("zero window and segment carries data")
	errLastNotInWindow = newRejectErr("segment end not in rcv.wnd")
)
