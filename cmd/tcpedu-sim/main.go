// Command tcpedu-sim drives two tcpstack Stacks against each other over an
// in-process, optionally-lossy virtual wire, on a synthetic clock, so the
// state machine and its timers can be watched end to end without real
// sockets or a real network interface.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/netip"
	"os"

	"github.com/netsys-edu/tcpstack/tcp"
)

func main() {
	var (
		lossProb    = flag.Float64("loss", 0.0, "probability in [0,1) of dropping a segment in flight")
		seed        = flag.Int64("seed", 1, "seed for the loss generator and the stacks' ISS RNG")
		rounds      = flag.Int("rounds", 4000, "maximum number of granularity ticks before giving up")
		granularity = flag.Float64("granularity", 0.05, "synthetic clock step per round, in seconds")
		message     = flag.String("message", "hello from tcpedu-sim", "payload the client sends once established")
		logLevel    = flag.String("loglevel", "info", "slog level: debug, info, warn, error")
	)
	flag.Parse()

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(*logLevel)); err != nil {
		log.Fatalf("bad -loglevel: %v", err)
	}
	lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))

	if err := run(lg, *lossProb, *seed, *rounds, *granularity, *message); err != nil {
		lg.Error("run failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	fmt.Println("DONE")
}

// clock is a manually-advanced Clock: nothing in this program relies on
// wall-clock time, so every round's duration is exact and reproducible.
type clock struct{ t float64 }

func (c *clock) Now() float64      { return c.t }
func (c *clock) advance(d float64) { c.t += d }

// manualTimer captures the callback tcp.NewStack arms, so main's own loop
// can decide exactly when a timer_tick round happens instead of a goroutine
// racing the rest of the simulation.
type manualTimer struct{ cb func() }

func (m *manualTimer) TickEvery(_ float64, cb func()) { m.cb = cb }
func (m *manualTimer) tick() {
	if m.cb != nil {
		m.cb()
	}
}

type frame struct {
	local, peer netip.AddrPort
	raw         []byte
}

// wireSink queues outbound segments rather than delivering them inline, so
// the main loop controls exactly when each hop happens and can drop a
// fraction of them to demonstrate retransmission and fast recovery.
type wireSink struct {
	name     string
	out      []frame
	lossProb float64
	rng      *rand.Rand
	log      *slog.Logger
}

func (w *wireSink) Emit(local, peer netip.AddrPort, segment []byte) error {
	if w.lossProb > 0 && w.rng.Float64() < w.lossProb {
		w.log.Debug("dropped segment", slog.String("wire", w.name), slog.String("local", local.String()), slog.String("peer", peer.String()))
		return nil
	}
	w.out = append(w.out, frame{local: local, peer: peer, raw: append([]byte(nil), segment...)})
	return nil
}

func (w *wireSink) drain() []frame {
	out := w.out
	w.out = nil
	return out
}

func run(lg *slog.Logger, lossProb float64, seed int64, rounds int, granularity float64, message string) error {
	rng := rand.New(rand.NewSource(seed))

	clientAddr := netip.MustParseAddrPort("10.0.0.1:5000")
	serverAddr := netip.MustParseAddrPort("10.0.0.2:80")

	clientClock := &clock{}
	serverClock := &clock{}
	clientTimer := &manualTimer{}
	serverTimer := &manualTimer{}
	toServer := &wireSink{name: "client->server", lossProb: lossProb, rng: rng, log: lg}
	toClient := &wireSink{name: "server->client", lossProb: lossProb, rng: rng, log: lg}

	clientStack := tcp.NewStack(clientClock, clientTimer, toServer, granularity, lg.With(slog.String("side", "client")), uint64(seed))
	serverStack := tcp.NewStack(serverClock, serverTimer, toClient, granularity, lg.With(slog.String("side", "server")), uint64(seed)+1)

	cfg := tcp.NewConnConfig()
	client := tcp.NewConnection(clientStack, cfg)
	if err := client.Bind(clientAddr); err != nil {
		return fmt.Errorf("bind client: %w", err)
	}

	listener := tcp.NewConnection(serverStack, cfg)
	if err := listener.Bind(serverAddr); err != nil {
		return fmt.Errorf("bind listener: %w", err)
	}
	if err := listener.Listen(8); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	if err := client.Connect(serverAddr); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	var server *tcp.Connection
	sent, closed := false, false
	sentAtRound := -1
	lastClientState, lastServerState := client.State(), tcp.StateInitial

	for i := 0; i < rounds; i++ {
		clientClock.advance(granularity)
		serverClock.advance(granularity)
		clientTimer.tick()
		serverTimer.tick()

		for _, f := range toServer.drain() {
			if err := deliver(serverStack, f); err != nil {
				lg.Warn("server demux error", slog.String("err", err.Error()))
			}
		}
		for _, f := range toClient.drain() {
			if err := deliver(clientStack, f); err != nil {
				lg.Warn("client demux error", slog.String("err", err.Error()))
			}
		}

		if server == nil {
			if c, err := listener.Accept(); err == nil {
				server = c
				lg.Info("server accepted connection", slog.String("peer", server.PeerAddr().String()))
			}
		}

		if client.State() != lastClientState {
			lg.Info("client state changed", slog.String("from", lastClientState.String()), slog.String("to", client.State().String()))
			lastClientState = client.State()
		}
		if server != nil && server.State() != lastServerState {
			lg.Info("server state changed", slog.String("from", lastServerState.String()), slog.String("to", server.State().String()))
			lastServerState = server.State()
		}

		if !sent && client.State() == tcp.StateEstablished {
			if _, err := client.Send([]byte(message)); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			sent = true
			sentAtRound = i
			lg.Info("client sent message", slog.Int("bytes", len(message)))
		}

		if server != nil && server.BytesReadable() > 0 {
			buf := make([]byte, server.BytesReadable())
			n, err := server.Recv(buf)
			if err != nil {
				return fmt.Errorf("recv: %w", err)
			}
			lg.Info("server received message", slog.String("payload", string(buf[:n])))
			if err := server.Close(); err != nil {
				return fmt.Errorf("server close: %w", err)
			}
		}

		const closeDelayRounds = 40 // generous margin for retransmission under -loss
		if sent && !closed && i-sentAtRound >= closeDelayRounds {
			if err := client.Close(); err != nil {
				return fmt.Errorf("client close: %w", err)
			}
			closed = true
		}

		if closed && client.State() == tcp.StateClosed && server != nil && server.State() == tcp.StateClosed {
			lg.Info("both sides reached closed", slog.Int("rounds", i+1))
			return nil
		}
	}
	return fmt.Errorf("gave up after %d rounds: client=%s server=%v", rounds, client.State(), serverState(server))
}

func serverState(c *tcp.Connection) tcp.State {
	if c == nil {
		return tcp.StateInitial
	}
	return c.State()
}

func deliver(dst *tcp.Stack, f frame) error {
	frm, err := tcp.NewFrame(f.raw)
	if err != nil {
		return err
	}
	return dst.Demux(f.local.Addr(), f.peer.Addr(), frm, len(frm.Payload()))
}
