package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options select the default logger's level and encoding.
type Options struct {
	// Verbose forces debug level regardless of Level.
	Verbose bool
	// Level is debug, info, warn or error. Empty means info.
	Level string
	// Format is text or json. Empty means text.
	Format string
}

// ParseLevel parses a level name case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q (use debug, info, warn, or error)", s)
	}
	return level, nil
}

// NewHandler builds a handler writing to w.
func NewHandler(w io.Writer, opts Options) (slog.Handler, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	ho := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(opts.Format) {
	case "", "text":
		return slog.NewTextHandler(w, ho), nil
	case "json":
		return slog.NewJSONHandler(w, ho), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (use text or json)", opts.Format)
	}
}

// Init installs the default logger on stderr.
func Init(opts Options) error {
	h, err := NewHandler(os.Stderr, opts)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(h))
	return nil
}
