package tcp

import "net/netip"

// Listener is the passive side of a connection: it owns a per-listener accept
// queue bounded by backlog, and spawns a child Connection for every inbound
// SYN, subject to the stack-wide SYN queue's capacity as well.
type Listener struct {
	logger

	stack *Stack
	local netip.AddrPort
	cfg   ConnConfig

	backlog     int
	acceptQueue []*Connection
}

// Listen transitions c from StateInitial to StateListen, registering a new
// Listener for c's bound local address. backlog bounds the accept queue.
func (c *Connection) Listen(backlog int) error {
	if c.state != StateInitial || !c.local.IsValid() {
		return ErrBadState
	}
	if backlog < 0 {
		backlog = 0
	}
	l := &Listener{
		logger:  c.logger,
		stack:   c.stack,
		local:   c.local,
		cfg:     c.cfg,
		backlog: backlog,
	}
	c.stack.listeners[c.local] = l
	c.ownedListener = l
	c.state = StateListen
	return nil
}

// Accept pops one established child connection from the accept queue, or
// reports ErrWouldBlock if none is ready.
func (c *Connection) Accept() (*Connection, error) {
	if c.ownedListener == nil {
		return nil, ErrBadState
	}
	return c.ownedListener.accept()
}

func (l *Listener) accept() (*Connection, error) {
	if len(l.acceptQueue) == 0 {
		return nil, ErrWouldBlock
	}
	child := l.acceptQueue[0]
	l.acceptQueue = l.acceptQueue[1:]
	return child, nil
}

// onSegment handles an inbound segment addressed to the listener's local
// address with no existing matching connection. Only a bare SYN is
// accepted; anything else is answered here with the stack's
// unmatched-segment RST (Stack.sendRST).
func (l *Listener) onSegment(peer netip.AddrPort, seg Segment, opts parsedOptions) error {
	if seg.Flags.Mask() != FlagSYN {
		return l.stack.sendRST(l.local, peer, seg)
	}
	if len(l.stack.synQueue) >= synQueueCapacity || len(l.acceptQueue) >= l.backlog {
		l.debug("syn dropped: queue full")
		return nil // silently dropped, peer will retry
	}

	child := NewConnection(l.stack, l.cfg)
	child.local = l.local
	child.peer = peer
	child.parentListener = l
	child.beginPassiveOpen(seg, opts)

	l.stack.synQueue = append(l.stack.synQueue, child)
	l.stack.register(child)
	return nil
}

// promoteToAcceptQueue moves a child connection from the stack-wide SYN
// queue to this listener's accept queue once its handshake completes.
func (l *Listener) promoteToAcceptQueue(child *Connection) {
	l.removeFromSynQueue(child)
	if len(l.acceptQueue) >= l.backlog {
		l.debug("accept queue full, dropping established child")
		l.stack.unregister(child)
		return
	}
	l.acceptQueue = append(l.acceptQueue, child)
	child.unblock()
}

func (l *Listener) removeFromSynQueue(child *Connection) {
	q := l.stack.synQueue
	for i, c := range q {
		if c == child {
			l.stack.synQueue = append(q[:i], q[i+1:]...)
			return
		}
	}
}

// abandon removes child from whichever queue still references it; deleteTCB
// calls it, e.g. on RST or a close before the child is accepted.
func (l *Listener) abandon(child *Connection) {
	l.removeFromSynQueue(child)
	for i, c := range l.acceptQueue {
		if c == child {
			l.acceptQueue = append(l.acceptQueue[:i], l.acceptQueue[i+1:]...)
			return
		}
	}
}
