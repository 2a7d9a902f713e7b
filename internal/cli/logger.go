package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// NewLogger builds a text logger writing to w. Each -v lowers the
// configured level by one step (warn, info, debug); quiet keeps only
// errors.
func NewLogger(w io.Writer, level string, verbose int, quiet bool) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	switch {
	case quiet:
		lvl = slog.LevelError
	case verbose > 0:
		lvl = max(lvl-slog.Level(4*verbose), slog.LevelDebug)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
