package tcp

import (
	"bytes"
	"testing"
)

func TestSimpleDataTransferClientToServer(t *testing.T) {
	p := newPair(t)
	server := p.handshake(t)

	msg := bytes.Repeat([]byte("hello-tcp-edu "), 20) // well under one SMSS
	n, err := p.client.Send(msg)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if n != len(msg) {
		t.Fatalf("send wrote %d, want %d", n, len(msg))
	}
	p.pump(t)

	got := make([]byte, len(msg)+64)
	n, err = server.Recv(got)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !bytes.Equal(got[:n], msg) {
		t.Fatalf("server received %q, want %q", got[:n], msg)
	}
	// A lone data segment leaves only a delayable ACK owed; the server sends
	// it on its next timer tick.
	p.advanceAndTick(t, server.cfg.Granularity, server)
	if p.client.snd.UNA != p.client.snd.NXT {
		t.Fatalf("client still has unacked data: una=%v nxt=%v", p.client.snd.UNA, p.client.snd.NXT)
	}
}

func TestDataTransferBothDirections(t *testing.T) {
	p := newPair(t)
	server := p.handshake(t)

	clientMsg := []byte("ping")
	serverMsg := []byte("pong-pong-pong")

	if _, err := p.client.Send(clientMsg); err != nil {
		t.Fatalf("client send: %v", err)
	}
	if _, err := server.Send(serverMsg); err != nil {
		t.Fatalf("server send: %v", err)
	}
	p.pump(t)

	buf := make([]byte, 64)
	n, err := server.Recv(buf)
	if err != nil {
		t.Fatalf("server recv: %v", err)
	}
	if !bytes.Equal(buf[:n], clientMsg) {
		t.Fatalf("server got %q, want %q", buf[:n], clientMsg)
	}

	n, err = p.client.Recv(buf)
	if err != nil {
		t.Fatalf("client recv: %v", err)
	}
	if !bytes.Equal(buf[:n], serverMsg) {
		t.Fatalf("client got %q, want %q", buf[:n], serverMsg)
	}
}

func TestDataLargerThanSingleSegmentIsSplitAndReassembled(t *testing.T) {
	p := newPair(t)
	server := p.handshake(t)

	msg := bytes.Repeat([]byte{0xAB}, int(p.client.effectiveSMSS())*3+17)
	if _, err := p.client.Send(msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	p.pump(t)

	got := make([]byte, len(msg)+64)
	n, err := server.Recv(got)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if n != len(msg) {
		t.Fatalf("reassembled %d bytes, want %d", n, len(msg))
	}
	if !bytes.Equal(got[:n], msg) {
		t.Fatalf("reassembled data mismatch")
	}
}

func TestRecvOnEmptyBufferReturnsZeroNotError(t *testing.T) {
	p := newPair(t)
	server := p.handshake(t)

	buf := make([]byte, 16)
	n, err := server.Recv(buf)
	if err != nil {
		t.Fatalf("recv on empty buffer returned error: %v", err)
	}
	if n != 0 {
		t.Fatalf("recv on empty buffer returned %d bytes, want 0", n)
	}
}
