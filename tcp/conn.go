package tcp

import (
	"log/slog"
	"net/netip"

	"github.com/netsys-edu/tcpstack/internal"
)

// Default buffer sizes and protocol constants.
const (
	DefaultTxMax      = 1 << 20  // 1 MiB
	DefaultRxMax      = 10 << 20 // 10 MiB
	DefaultSMSS  Size = 1460
	DefaultGranularity = 0.1 // 100ms timer tick
)

// ConnConfig configures a freshly created Connection. The zero value is not
// ready to use; callers should start from NewConnConfig.
type ConnConfig struct {
	TxMax          int
	RxMax          int
	SMSS           Size
	Granularity    float64 // G, the timer_tick cadence in seconds
	MSL            float64 // half of the TIME-WAIT duration
	UseWindowScale bool
	UseTimestamps  bool
	Logger         *slog.Logger
	TSHash         uint32 // per-stack deterministic offset added to outgoing tsval
}

// NewConnConfig returns a ConnConfig populated with this package's defaults.
func NewConnConfig() ConnConfig {
	return ConnConfig{
		TxMax:          DefaultTxMax,
		RxMax:          DefaultRxMax,
		SMSS:           DefaultSMSS,
		Granularity:    DefaultGranularity,
		MSL:            DefaultMSL,
		UseWindowScale: true,
		UseTimestamps:  true,
	}
}

// Connection is the per-connection TCP protocol engine: one value drives a
// single bidirectional byte stream through the full state machine, described
// in full by the component subsystems in the other files of this package.
type Connection struct {
	logger

	local netip.AddrPort
	peer  netip.AddrPort

	state State
	cfg   ConnConfig

	snd sendSpace
	rcv recvSpace

	txBuf internal.Ring
	rxBuf internal.Ring

	retx retxQueue
	ooo  oooQueue

	rtt rttEstimator
	cc  congestionController
	ack delayedACK
	fin finController
	zwp zwpController
	tw  timeWaitTimer

	retxActive  bool
	retxStart   float64
	hasLastSend bool
	lastSendTS  float64

	sndWndShift uint8
	rcvWndShift uint8
	useTSOption bool
	tsRecent    uint32
	tsLastAck   Value

	shutRD bool
	shutWR bool

	// parentListener is set on connections spawned by a Listener's SYN
	// handling, so they can remove themselves from the syn/accept queues on
	// teardown.
	parentListener *Listener

	// ownedListener is set on the socket itself once Listen has been called;
	// Accept delegates to it.
	ownedListener *Listener

	stack *Stack

	wakers []func()
}

// NewConnection allocates a Connection in the StateInitial pseudo-state,
// owned by stack (for clock/emit access and registry membership).
func NewConnection(stack *Stack, cfg ConnConfig) *Connection {
	c := &Connection{
		state: StateInitial,
		cfg:   cfg,
		stack: stack,
		rtt:   newRTTEstimator(),
	}
	c.logger = logger{log: cfg.Logger}
	c.txBuf.Buf = make([]byte, cfg.TxMax)
	c.rxBuf.Buf = make([]byte, cfg.RxMax)
	return c
}

// State returns the connection's current state.
func (c *Connection) State() State { return c.state }

// LocalAddr and PeerAddr return the connection's 4-tuple identity.
func (c *Connection) LocalAddr() netip.AddrPort { return c.local }
func (c *Connection) PeerAddr() netip.AddrPort  { return c.peer }

// BytesReadable returns the number of bytes immediately available to Recv.
func (c *Connection) BytesReadable() int { return c.rxBuf.Buffered() }

// BytesWritable returns the number of bytes Send could currently accept
// before truncating.
func (c *Connection) BytesWritable() int { return c.txBuf.Free() }

// Poll registers a one-shot wake callback, fired the next time the
// connection's externally-observable state changes. It is the only
// suspension hook the core exposes; everything else is synchronous.
func (c *Connection) Poll(wake func()) {
	c.wakers = append(c.wakers, wake)
}

// unblock fires and drains every registered wake callback exactly once
// (the end-of-call-chain bookkeeping step).
func (c *Connection) unblock() {
	if len(c.wakers) == 0 {
		return
	}
	wakers := c.wakers
	c.wakers = nil
	for _, w := range wakers {
		w()
	}
}

func (c *Connection) now() float64 {
	return c.stack.clock.Now()
}

// effectiveSMSS returns the configured SMSS, used throughout congestion and
// segmentation logic.
func (c *Connection) effectiveSMSS() Size {
	if c.cfg.SMSS == 0 {
		return DefaultSMSS
	}
	return c.cfg.SMSS
}
