package internal

import (
	"context"
	"log/slog"
)

// LevelTrace sits below slog.LevelDebug for segment-by-segment tracing that
// would otherwise drown out ordinary debug logging.
const LevelTrace slog.Level = slog.LevelDebug - 2

// LogEnabled reports whether l would emit a record at lvl, treating a nil
// logger as disabled.
func LogEnabled(l *slog.Logger, lvl slog.Level) bool {
	return l != nil && l.Handler().Enabled(context.Background(), lvl)
}

// LogAttrs forwards to l.LogAttrs, tolerating a nil logger.
func LogAttrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l != nil {
		l.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
