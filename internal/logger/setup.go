package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"golang.org/x/term"
)

// Output formats accepted by Setup.
const (
	FormatAuto   = "auto"
	FormatPretty = "pretty"
	FormatText   = "text"
	FormatJSON   = "json"
)

// Options configures the process logger.
type Options struct {
	Level  slog.Level
	Format string
	// Writer receives console logs; defaults to os.Stderr.
	Writer io.Writer
	// File, when set, also receives every record as JSON at debug level.
	File string
}

// Setup builds the console handler and, when a log file is requested, fans
// records out to both. The returned closer releases the log file.
func Setup(opts Options) (Logger, io.Closer, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	console, err := consoleHandler(w, opts.Format, opts.Level)
	if err != nil {
		return nil, nil, err
	}
	if opts.File == "" {
		return New(console), nopCloser{}, nil
	}

	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	file := slog.NewJSONHandler(f, &slog.HandlerOptions{AddSource: true, Level: slog.LevelDebug})
	return New(slogmulti.Fanout(console, file)), f, nil
}

func consoleHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatAuto:
		if IsTerminal(w) {
			return NewPrettyHandler(w, opts), nil
		}
		return slog.NewJSONHandler(w, opts), nil
	case FormatPretty:
		return NewPrettyHandler(w, opts), nil
	case FormatText:
		return slog.NewTextHandler(w, opts), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (expected auto, pretty, text, or json)", format)
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
