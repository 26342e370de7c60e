package tcp

import (
	"log/slog"

	"github.com/netsys-edu/tcpstack/internal"
)

// logger is embedded by value in Connection, Listener and Stack so each can
// emit structured, leveled log records without every call site carrying a
// *slog.Logger field of its own. A zero-value logger is silent.
type logger struct {
	log *slog.Logger
}

func (l logger) enabled(lvl slog.Level) bool {
	return internal.LogEnabled(l.log, lvl)
}

func (l logger) debug(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelDebug, msg, attrs...)
}

func (l logger) trace(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, internal.LevelTrace, msg, attrs...)
}

func (l logger) info(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelInfo, msg, attrs...)
}

func (l logger) logerr(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelError, msg, attrs...)
}

func (c *Connection) traceSeg(msg string, seg Segment) {
	if !c.enabled(internal.LevelTrace) {
		return
	}
	c.trace(msg,
		slog.Uint64("seg.seq", uint64(seg.SEQ)),
		slog.Uint64("seg.ack", uint64(seg.ACK)),
		slog.Uint64("seg.wnd", uint64(seg.WND)),
		slog.String("seg.flags", seg.Flags.String()),
		slog.Uint64("seg.data", uint64(seg.DATALEN)),
	)
}

func (c *Connection) traceSnd(msg string) {
	c.trace(msg,
		slog.String("state", c.state.String()),
		slog.Uint64("snd.nxt", uint64(c.snd.NXT)),
		slog.Uint64("snd.una", uint64(c.snd.UNA)),
		slog.Uint64("snd.wnd", uint64(c.snd.WND)),
	)
}
