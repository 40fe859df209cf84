package main

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestStreamWriterModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode StreamMode
		raw  bool
		want string
	}{
		{StreamInstant, false, "héllo\tworld\n"},
		{StreamTypewriter, false, "héllo\tworld\n"},
		{StreamQuiet, false, "héllo\tworld\n"},
		{StreamInstant, true, `héllo\tworld\n`},
		{StreamTypewriter, true, `héllo\tworld\n`},
		{StreamQuiet, true, `héllo\tworld\n`},
	}
	for _, tc := range tests {
		t.Run(string(tc.mode), func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			w := NewStreamWriter(&out, tc.mode, tc.raw, lipgloss.NewStyle())
			for _, piece := range []string{"h", "é", "llo\t", "world\n"} {
				w.Write(piece)
			}
			if tc.mode == StreamQuiet && out.Len() != 0 {
				t.Fatalf("quiet mode wrote before flush: %q", out.String())
			}
			got := w.Flush()
			if got != "héllo\tworld\n" {
				t.Fatalf("flush returned %q", got)
			}
			if out.String() != tc.want {
				t.Fatalf("output %q, want %q", out.String(), tc.want)
			}
		})
	}
}

func TestStreamWriterFlushStartsNewReply(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	w := NewStreamWriter(&out, StreamInstant, false, lipgloss.NewStyle())
	w.Write("one")
	if got := w.Flush(); got != "one" {
		t.Fatalf("first reply %q", got)
	}
	w.Write("two")
	if got := w.Flush(); got != "two" {
		t.Fatalf("second reply %q", got)
	}
	if got := w.Flush(); got != "" {
		t.Fatalf("empty reply %q", got)
	}
}

func TestEscapeRawOutput(t *testing.T) {
	t.Parallel()

	got := escapeRawOutput("a\\b\r\x01")
	if want := `a\\b\r\u0001`; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
