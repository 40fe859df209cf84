package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerCarriesAttrsAndGroups(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo).With("session", "s1").WithGroup("turn")
	log.Debug("hidden")
	log.Info("done", "tokens", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record below level was written: %s", out)
	}
	if !strings.Contains(out, `"session":"s1"`) || !strings.Contains(out, `"turn":{"tokens":3}`) {
		t.Fatalf("unexpected record: %s", out)
	}
}

func TestContextLogger(t *testing.T) {
	t.Parallel()
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext without a logger must fall back to Default")
	}

	var buf bytes.Buffer
	ctx := WithContext(context.Background(), JSON(&buf, slog.LevelInfo))
	FromContext(ctx).Info("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Fatalf("expected the stored logger to be used, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
		wantErr  bool
	}{
		{input: "debug", expected: slog.LevelDebug},
		{input: "info", expected: slog.LevelInfo},
		{input: "warn", expected: slog.LevelWarn},
		{input: "warning", expected: slog.LevelWarn},
		{input: "ERROR", expected: slog.LevelError},
		{input: " info+2 ", expected: slog.LevelInfo + 2},
		{input: "unknown", expected: slog.LevelInfo, wantErr: true},
		{input: "", expected: slog.LevelInfo, wantErr: true},
	}

	for _, tc := range tests {
		result, err := ParseLevel(tc.input)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q): err=%v, wantErr=%v", tc.input, err, tc.wantErr)
		}
		if result != tc.expected {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tc.input, tc.expected, result)
		}
	}
}

func TestDiscardDropsEverything(t *testing.T) {
	t.Parallel()
	log := Discard().With("k", "v").WithGroup("g")
	log.Error("nothing to see")
}

func TestPrettyLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		log  func(*slog.Logger)
		want string
	}{
		{"simple", func(l *slog.Logger) { l.Info("m", "key", "simple") }, "key=simple"},
		{"spaces quoted", func(l *slog.Logger) { l.Info("m", "msg", "hello world") }, `msg="hello world"`},
		{"nested groups", func(l *slog.Logger) { l.WithGroup("a").WithGroup("b").Info("m", "key", "val") }, "a.b.key=val"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tc.log(slog.New(NewPrettyHandler(&buf, nil)))
			if !strings.Contains(buf.String(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, buf.String())
			}
		})
	}
}

func TestPrettyHonoursLevel(t *testing.T) {
	t.Parallel()
	h := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	if h.Enabled(context.Background(), slog.LevelInfo) || !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("pretty handler ignores its level")
	}
}

func TestSetupFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		want   string
	}{
		{FormatJSON, `"msg":"hello"`},
		{FormatText, "msg=hello"},
		{FormatPretty, "n=1"},
		// A bytes.Buffer is not a terminal, so auto picks JSON.
		{FormatAuto, `"msg":"hello"`},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		log, closer, err := Setup(Options{Level: slog.LevelInfo, Format: tc.format, Writer: &buf})
		if err != nil {
			t.Fatalf("%s: %v", tc.format, err)
		}
		log.Info("hello", "n", 1)
		_ = closer.Close()
		if !strings.Contains(buf.String(), tc.want) {
			t.Errorf("%s: expected %q in %q", tc.format, tc.want, buf.String())
		}
	}

	if _, _, err := Setup(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestSetupFansOutToFile(t *testing.T) {
	t.Parallel()

	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "chat.log")
	log, closer, err := Setup(Options{Level: slog.LevelWarn, Format: FormatText, Writer: &console, File: path})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	log.Debug("only in file")
	log.Warn("everywhere")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "only in file") || !strings.Contains(string(data), "everywhere") {
		t.Fatalf("file missing records: %s", data)
	}
	if strings.Contains(console.String(), "only in file") || !strings.Contains(console.String(), "everywhere") {
		t.Fatalf("console level not honoured: %s", console.String())
	}
}

func TestPrettyAttrsKeepTheirGroup(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("outer", "1")}).WithGroup("g"))
	logger.Info("x", "inner", "2")

	output := buf.String()
	if !strings.Contains(output, "outer=1") || !strings.Contains(output, "g.inner=2") {
		t.Fatalf("unexpected grouping: %s", output)
	}
}

func TestPrettyFormatsErrorsAndDurations(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, nil))
	logger.Info("x", "err", errors.New("went wrong"), "took", 1500*time.Millisecond)

	output := buf.String()
	if !strings.Contains(output, `err="went wrong"`) || !strings.Contains(output, "took=1.5s") {
		t.Fatalf("unexpected output: %s", output)
	}
}
