package tcp

import (
	"bytes"
	"testing"
)

// TestCloseWithPendingDataFlushesBeforeFIN verifies that Close() on a
// connection with unsent data in tx_buf defers the FIN until the data
// drains, per the deferred-FIN controller.
func TestCloseWithPendingDataFlushesBeforeFIN(t *testing.T) {
	p := newPair(t)
	server := p.handshake(t)

	msg := bytes.Repeat([]byte{0x11}, 500)
	if _, err := p.client.Send(msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := p.client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if p.client.State() != StateFinWait1 {
		t.Fatalf("client state immediately after close = %s, want FIN_WAIT_1", p.client.State())
	}
	if !p.client.fin.pending && !p.client.fin.sent {
		t.Fatalf("fin controller should have pending or sent set")
	}

	p.pump(t)

	buf := make([]byte, len(msg)+32)
	n, err := server.Recv(buf)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !bytes.Equal(buf[:n], msg) {
		t.Fatalf("server data before FIN mismatch: got %d bytes", n)
	}
	if server.State() != StateCloseWait {
		t.Fatalf("server state after peer FIN = %s, want CLOSE_WAIT", server.State())
	}
	if p.client.State() != StateFinWait2 {
		t.Fatalf("client state after FIN acked = %s, want FIN_WAIT_2", p.client.State())
	}

	if err := server.Close(); err != nil {
		t.Fatalf("server close: %v", err)
	}
	if server.State() != StateLastAck {
		t.Fatalf("server state after close from CLOSE_WAIT = %s, want LAST_ACK", server.State())
	}
	p.pump(t)

	if server.State() != StateClosed {
		t.Fatalf("server state after its FIN acked = %s, want CLOSED", server.State())
	}
	if p.client.State() != StateTimeWait {
		t.Fatalf("client state after receiving server's FIN = %s, want TIME_WAIT", p.client.State())
	}
}

// TestCloseWithLargeBacklogStaysEstablishedUntilFINSent verifies that when
// Close() is called with more queued data than the current congestion
// window admits, the connection stays in ESTABLISHED (FIN merely pending)
// until the backlog has actually drained and the FIN has actually gone out
// on the wire, rather than jumping to FIN_WAIT_1 on the spot.
func TestCloseWithLargeBacklogStaysEstablishedUntilFINSent(t *testing.T) {
	p := newPair(t)
	server := p.handshake(t)

	smss := int(p.client.effectiveSMSS())
	msg := bytes.Repeat([]byte{0x22}, smss*6) // well over the initial congestion window
	if _, err := p.client.Send(msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := p.client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if p.client.txBuf.Buffered() == 0 {
		t.Fatalf("test setup error: backlog should still exceed what one congestion window admits")
	}
	if p.client.State() != StateEstablished {
		t.Fatalf("client state with an undrained backlog = %s, want ESTABLISHED (FIN not yet sent)", p.client.State())
	}
	if !p.client.fin.pending || p.client.fin.sent {
		t.Fatalf("fin controller should record pending=true, sent=false while data is still queued ahead of the FIN")
	}

	p.pump(t)

	if !p.client.fin.sent {
		t.Fatalf("FIN should have been sent once the backlog fully drained")
	}
	if p.client.State() != StateFinWait2 && p.client.State() != StateTimeWait {
		t.Fatalf("client state after its FIN drained and was acked = %s, want FIN_WAIT_2 or TIME_WAIT", p.client.State())
	}

	buf := make([]byte, len(msg)+32)
	n, err := server.Recv(buf)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !bytes.Equal(buf[:n], msg) {
		t.Fatalf("server data before FIN mismatch: got %d bytes, want %d", n, len(msg))
	}
}

func TestSimultaneousCloseReachesTimeWaitViaClosing(t *testing.T) {
	p := newPair(t)
	server := p.handshake(t)

	if err := p.client.Close(); err != nil {
		t.Fatalf("client close: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Fatalf("server close: %v", err)
	}
	p.pump(t)

	if p.client.State() != StateTimeWait && server.State() != StateTimeWait {
		t.Fatalf("neither side reached TIME_WAIT: client=%s server=%s", p.client.State(), server.State())
	}
}
