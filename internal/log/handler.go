package log

import (
	"log/slog"
	"os"
)

// NewCLIHandler returns a slog.Handler tuned for terminal output: a plain
// text handler writing to stderr at the given level, with source location
// and timestamps only at DEBUG level (where they are useful for
// troubleshooting and not just noise).
func NewCLIHandler(level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}
	if level > slog.LevelDebug {
		opts.ReplaceAttr = dropTimeAttr
	}
	return slog.NewTextHandler(os.Stderr, opts)
}

func dropTimeAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
