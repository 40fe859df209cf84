package chat

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/samcharles93/chatloop/internal/engine"
	"github.com/samcharles93/chatloop/internal/logger"
)

// ErrTemplate means the chat template could not be applied. The template
// is broken for the whole session, not just the current turn.
var ErrTemplate = errors.New("failed to apply the chat template")

// Renderer applies a chat template using the two-pass length/buffer
// contract of engine.TemplateRenderer.
type Renderer interface {
	ApplyTemplate(tmpl string, msgs []engine.Message, addAssistant bool, buf []byte) int
}

// Formatter produces, for each new user turn, only the prompt text that
// the engine has not seen yet. It re-renders the whole conversation and
// slices off the prefix consumed by earlier turns, which relies on the
// template only ever appending bytes as turns are added.
type Formatter struct {
	renderer Renderer
	template string
	system   string
	log      logger.Logger

	conv Conversation
	buf  []byte
	// prevLen is the length of the render that ended with the last
	// committed assistant turn.
	prevLen   int
	committed []byte
}

// Options configures a Formatter.
type Options struct {
	// Template is the chat template handed to the renderer.
	Template string
	// System, when set, becomes the first turn of every conversation.
	System string
	// BufferSize is the initial render buffer size, usually the context
	// size in tokens.
	BufferSize int
	Logger     logger.Logger
}

// NewFormatter returns a formatter over an empty conversation.
func NewFormatter(r Renderer, opts Options) *Formatter {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 2048
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	f := &Formatter{
		renderer: r,
		template: opts.Template,
		system:   opts.System,
		log:      opts.Logger,
		buf:      make([]byte, opts.BufferSize),
	}
	f.Reset()
	return f
}

// RenderPrompt appends a user turn and returns the new prompt text: the
// full render with the assistant generation prefix, minus everything up to
// the end of the previously committed turn.
func (f *Formatter) RenderPrompt(userText string) (string, error) {
	f.conv.Append(RoleUser, userText)
	full, err := f.Render(true)
	if err != nil {
		return "", err
	}
	if f.prevLen > len(full) {
		return "", fmt.Errorf("%w: render shrank from %d to %d bytes", ErrTemplate, f.prevLen, len(full))
	}
	if f.committed != nil && !bytes.HasPrefix(full, f.committed) {
		f.log.Warn("chat template rewrote earlier turns; incremental prompt may be inaccurate",
			"turns", f.conv.Len(), "prev_len", f.prevLen)
	}
	return string(full[f.prevLen:]), nil
}

// CommitAssistant appends the assistant reply and moves the cursor to the
// end of the render without a generation prefix.
func (f *Formatter) CommitAssistant(text string) error {
	if last, ok := f.conv.Last(); !ok || last.Role != RoleUser {
		f.log.Warn("assistant reply does not follow a user turn", "turns", f.conv.Len())
	}
	f.conv.Append(RoleAssistant, text)
	full, err := f.Render(false)
	if err != nil {
		return err
	}
	f.prevLen = len(full)
	f.committed = append(f.committed[:0], full...)
	return nil
}

// Render renders the whole conversation. The returned slice aliases the
// formatter's buffer and is only valid until the next call.
func (f *Formatter) Render(addAssistant bool) ([]byte, error) {
	msgs := f.conv.messages()
	n := f.renderer.ApplyTemplate(f.template, msgs, addAssistant, f.buf)
	if n > len(f.buf) {
		f.buf = make([]byte, n)
		n = f.renderer.ApplyTemplate(f.template, msgs, addAssistant, f.buf)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w (%d turns)", ErrTemplate, len(msgs))
	}
	return f.buf[:n], nil
}

// PrevLen is the byte offset already consumed by previous prompts.
func (f *Formatter) PrevLen() int { return f.prevLen }

// Turns returns a copy of the conversation.
func (f *Formatter) Turns() []Turn { return f.conv.Turns() }

// Reset starts a new conversation, keeping the system prompt.
func (f *Formatter) Reset() {
	f.conv.Reset()
	f.prevLen = 0
	f.committed = nil
	if f.system != "" {
		f.conv.Append(RoleSystem, f.system)
	}
}
