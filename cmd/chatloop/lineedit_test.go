package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadBufferedLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "input")
	if err := os.WriteFile(path, []byte("hello\r\n\nlast"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open input: %v", err)
	}
	defer f.Close()

	var prompts strings.Builder
	r := newLineReader(f, &prompts)
	for _, want := range []string{"hello", "", "last"} {
		got, err := r.readBuffered("> ")
		if err != nil {
			t.Fatalf("read %q: %v", want, err)
		}
		if got != want {
			t.Fatalf("got %q want %q", got, want)
		}
	}
	if _, err := r.readBuffered("> "); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if prompts.String() != "> > > > " {
		t.Fatalf("unexpected prompts %q", prompts.String())
	}
}

func TestRememberSkipsEmptyAndRepeats(t *testing.T) {
	t.Parallel()

	r := &lineReader{}
	for _, s := range []string{"a", "", "a", "b"} {
		r.remember(s)
	}
	if strings.Join(r.history, ",") != "a,b" {
		t.Fatalf("unexpected history %q", r.history)
	}
}
