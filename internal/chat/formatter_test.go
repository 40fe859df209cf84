package chat

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/samcharles93/chatloop/internal/engine"
	"github.com/samcharles93/chatloop/internal/logger"
)

// tagRenderer is an append-only template: every message renders to a
// fixed wrapper and the generation prefix matches the assistant opener.
type tagRenderer struct {
	calls int
	fail  bool
	// countHeader makes the template depend on the total number of turns,
	// which breaks the append-only assumption.
	countHeader bool
}

func (r *tagRenderer) ApplyTemplate(_ string, msgs []engine.Message, addAssistant bool, buf []byte) int {
	r.calls++
	if r.fail {
		return -1
	}
	var b strings.Builder
	if r.countHeader {
		b.WriteString(strings.Repeat("#", len(msgs)))
		b.WriteString("\n")
	}
	for _, m := range msgs {
		b.WriteString("<|" + m.Role + "|>" + m.Content + "<|end|>\n")
	}
	if addAssistant {
		b.WriteString("<|assistant|>")
	}
	out := b.String()
	if len(out) <= len(buf) {
		copy(buf, out)
	}
	return len(out)
}

func newTestFormatter(r Renderer, bufSize int) *Formatter {
	return NewFormatter(r, Options{BufferSize: bufSize, Logger: logger.Discard()})
}

func TestRenderPromptIncrementalDiff(t *testing.T) {
	t.Parallel()

	f := newTestFormatter(&tagRenderer{}, 1024)

	p1, err := f.RenderPrompt("hello")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if p1 != "<|user|>hello<|end|>\n<|assistant|>" {
		t.Fatalf("first prompt = %q", p1)
	}
	if err := f.CommitAssistant("hi"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	wantLen := len("<|user|>hello<|end|>\n<|assistant|>hi<|end|>\n")
	if f.PrevLen() != wantLen {
		t.Fatalf("prevLen = %d, want %d", f.PrevLen(), wantLen)
	}

	p2, err := f.RenderPrompt("how are you")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if p2 != "<|user|>how are you<|end|>\n<|assistant|>" {
		t.Fatalf("second prompt leaked earlier bytes: %q", p2)
	}
	if strings.Contains(p2, "hello") || strings.Contains(p2, "hi<|end|>") {
		t.Fatalf("second prompt contains earlier turns: %q", p2)
	}
}

func TestPrevLenTracksCommittedRender(t *testing.T) {
	t.Parallel()

	f := newTestFormatter(&tagRenderer{}, 1024)
	last := 0
	for i, msg := range []string{"one", "two", "three", "four"} {
		if _, err := f.RenderPrompt(msg); err != nil {
			t.Fatalf("turn %d render: %v", i, err)
		}
		if err := f.CommitAssistant(strings.ToUpper(msg)); err != nil {
			t.Fatalf("turn %d commit: %v", i, err)
		}
		full, err := f.Render(false)
		if err != nil {
			t.Fatalf("turn %d full render: %v", i, err)
		}
		if f.PrevLen() != len(full) {
			t.Fatalf("turn %d: prevLen %d != full render %d", i, f.PrevLen(), len(full))
		}
		if f.PrevLen() < last {
			t.Fatalf("turn %d: prevLen decreased %d -> %d", i, last, f.PrevLen())
		}
		last = f.PrevLen()
	}
	if got := len(f.Turns()); got != 8 {
		t.Fatalf("expected 8 turns, got %d", got)
	}
}

func TestRenderIdempotent(t *testing.T) {
	t.Parallel()

	f := newTestFormatter(&tagRenderer{}, 1024)
	if _, err := f.RenderPrompt("hello"); err != nil {
		t.Fatalf("render: %v", err)
	}
	a, err := f.Render(true)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	first := append([]byte(nil), a...)
	b, err := f.Render(true)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(first, b) {
		t.Fatalf("renders differ: %q vs %q", first, b)
	}
}

func TestRenderGrowsBuffer(t *testing.T) {
	t.Parallel()

	r := &tagRenderer{}
	f := newTestFormatter(r, 4)
	p, err := f.RenderPrompt("a message longer than four bytes")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasSuffix(p, "<|assistant|>") {
		t.Fatalf("unexpected prompt %q", p)
	}
	if r.calls != 2 {
		t.Fatalf("expected length query plus render, got %d calls", r.calls)
	}
}

func TestRenderNegativeLengthIsTemplateError(t *testing.T) {
	t.Parallel()

	f := newTestFormatter(&tagRenderer{fail: true}, 64)
	if _, err := f.RenderPrompt("x"); !errors.Is(err, ErrTemplate) {
		t.Fatalf("expected ErrTemplate, got %v", err)
	}
}

func TestNonAppendOnlyTemplateIsLogged(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	f := NewFormatter(&tagRenderer{countHeader: true}, Options{
		BufferSize: 256,
		Logger:     logger.JSON(&logs, slog.LevelWarn),
	})
	if _, err := f.RenderPrompt("a"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := f.CommitAssistant("b"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := f.RenderPrompt("c"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(logs.String(), "rewrote earlier turns") {
		t.Fatalf("expected divergence warning, got %q", logs.String())
	}
}

func TestCommitWithoutUserTurnIsLogged(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	f := NewFormatter(&tagRenderer{}, Options{BufferSize: 256, Logger: logger.JSON(&logs, slog.LevelWarn)})
	if _, err := f.RenderPrompt("a"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := f.CommitAssistant("b"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if logs.Len() != 0 {
		t.Fatalf("alternating turns must not warn, got %q", logs.String())
	}
	if err := f.CommitAssistant("c"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !strings.Contains(logs.String(), "does not follow a user turn") {
		t.Fatalf("expected alternation warning, got %q", logs.String())
	}
	if n := len(f.Turns()); n != 3 {
		t.Fatalf("commit must still append, got %d turns", n)
	}
}

func TestSystemPromptSurvivesReset(t *testing.T) {
	t.Parallel()

	f := NewFormatter(&tagRenderer{}, Options{System: "be brief", Logger: logger.Discard()})
	p, err := f.RenderPrompt("hello")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(p, "<|system|>be brief<|end|>\n<|user|>hello") {
		t.Fatalf("system turn missing from first prompt: %q", p)
	}
	if err := f.CommitAssistant("hi"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	f.Reset()
	if f.PrevLen() != 0 {
		t.Fatalf("expected cursor reset")
	}
	turns := f.Turns()
	if len(turns) != 1 || turns[0].Role != RoleSystem {
		t.Fatalf("expected only the system turn after reset, got %+v", turns)
	}
}
